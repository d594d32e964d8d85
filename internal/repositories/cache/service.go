package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"qrwallet/internal/models"
	keys "qrwallet/internal/utils/cache"
)

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// User caching
func (s *CacheService) CacheUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("cannot cache nil user")
	}

	cacheKeys := []string{
		keys.GenerateKey(keys.EntityUser, keys.KeyID, user.ID),
		keys.GenerateKey(keys.EntityUser, keys.KeyEmail, user.Email),
	}
	if user.Phone != "" {
		cacheKeys = append(cacheKeys, keys.GenerateKey(keys.EntityUser, keys.KeyPhone, user.Phone))
	}

	for _, key := range cacheKeys {
		if err := s.Set(ctx, key, user); err != nil {
			return err
		}
	}
	return nil
}

func (s *CacheService) GetUser(ctx context.Context, key string) (*models.User, error) {
	var user models.User
	found, err := s.Get(ctx, key, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("user not found in cache")
	}
	return &user, nil
}

// Wallet caching
func (s *CacheService) CacheWallet(ctx context.Context, wallet *models.Wallet) error {
	key := keys.GenerateKey(keys.EntityWallet, keys.KeyID, wallet.UserID)
	return s.Set(ctx, key, wallet)
}

func (s *CacheService) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	key := keys.GenerateKey(keys.EntityWallet, keys.KeyID, userID)
	var wallet models.Wallet
	found, err := s.Get(ctx, key, &wallet)
	if err != nil || !found {
		return nil, err
	}
	return &wallet, nil
}

// Exchange rate caching
func (s *CacheService) CacheRate(ctx context.Context, rate *models.ExchangeRate, ttl time.Duration) error {
	key := keys.GenerateKey(keys.EntityRate, keys.KeyPair, rate.Base+rate.Quote)
	return s.SetWithTTL(ctx, key, rate, ttl)
}

func (s *CacheService) GetRate(ctx context.Context, base, quote string) (*models.ExchangeRate, error) {
	key := keys.GenerateKey(keys.EntityRate, keys.KeyPair, base+quote)
	var rate models.ExchangeRate
	found, err := s.Get(ctx, key, &rate)
	if err != nil || !found {
		return nil, err
	}
	return &rate, nil
}

// Invalidation patterns
func (s *CacheService) InvalidateUser(ctx context.Context, userID uint) error {
	user, err := s.GetUser(ctx, keys.GenerateKey(keys.EntityUser, keys.KeyID, userID))
	if err != nil {
		return err
	}

	cacheKeys := []string{
		keys.GenerateKey(keys.EntityUser, keys.KeyID, userID),
		keys.GenerateKey(keys.EntityUser, keys.KeyEmail, user.Email),
	}
	if user.Phone != "" {
		cacheKeys = append(cacheKeys, keys.GenerateKey(keys.EntityUser, keys.KeyPhone, user.Phone))
	}

	return s.Delete(ctx, cacheKeys...)
}

func (s *CacheService) InvalidateWallet(ctx context.Context, userID uint) error {
	return s.Delete(ctx, keys.GenerateKey(keys.EntityWallet, keys.KeyID, userID))
}

// HealthCheck pings the backing Redis instance.
func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
