// Package auth implements account registration, login with lockout,
// token refresh and password changes. Tokens are stateless JWTs; a
// per-user token version lets logout and password changes revoke every
// outstanding session at once.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/utils"
	"qrwallet/internal/utils/logger"
	"qrwallet/internal/validation"
)

// Lockout policy. After maxFailedLogins consecutive failures the
// account is frozen for lockoutDuration; a successful login resets
// the counter.
const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// RegisterRequest carries everything needed to open an account. The
// wallet is created in the same transaction as the user row.
type RegisterRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// TokenPair is the access/refresh pair issued on register, login and
// refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Config struct {
	DefaultCurrency     string
	SupportedCurrencies []string
	IPHashSalt          string
}

type Service interface {
	Register(req RegisterRequest) (*models.User, *TokenPair, error)
	Login(email, phone, password, ip string) (*models.User, *TokenPair, error)
	RefreshTokens(refreshToken string) (*TokenPair, error)
	Logout(userID uint) error
	ChangePassword(userID uint, oldPassword, newPassword string) error
}

type service struct {
	users repositories.UserRepository
	cfg   Config
	now   func() time.Time
}

func NewService(users repositories.UserRepository, cfg Config) Service {
	if users == nil {
		panic("user repository is required")
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if len(cfg.SupportedCurrencies) == 0 {
		cfg.SupportedCurrencies = []string{cfg.DefaultCurrency}
	}
	return &service{users: users, cfg: cfg, now: time.Now}
}

func (s *service) Register(req RegisterRequest) (*models.User, *TokenPair, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = s.cfg.DefaultCurrency
	}

	v := validation.New()
	v.Email("email", req.Email)
	v.Phone("phone", req.Phone)
	v.Password("password", req.Password)
	v.Required("name", req.Name)
	v.OneOf("currency", req.Currency, s.cfg.SupportedCurrencies...)
	if !v.Valid() {
		return nil, nil, errors.ErrValidation.WithDetails(v.Details())
	}

	if _, err := s.users.GetByEmail(req.Email); err == nil {
		return nil, nil, errors.ErrEmailTaken
	}
	if _, err := s.users.GetByPhone(req.Phone); err == nil {
		return nil, nil, errors.ErrPhoneTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, errors.Internal(err)
	}

	walletNumber, err := utils.GenerateWalletNumber()
	if err != nil {
		return nil, nil, errors.Internal(err)
	}

	user := &models.User{
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     string(hash),
		Name:         req.Name,
		Country:      strings.ToUpper(strings.TrimSpace(req.Country)),
		Role:         "user",
		Status:       "active",
		KYCStatus:    models.KYCStatusUnverified,
		TokenVersion: 1,
	}
	wallet := &models.Wallet{
		WalletNumber: walletNumber,
		Currency:     req.Currency,
		Balance:      decimal.Zero,
		Status:       models.WalletStatusActive,
	}

	if err := s.users.CreateWithWallet(user, wallet); err != nil {
		switch {
		case errors.Is(err, repositories.ErrEmailTaken):
			return nil, nil, errors.ErrEmailTaken
		case errors.Is(err, repositories.ErrPhoneTaken):
			return nil, nil, errors.ErrPhoneTaken
		}
		return nil, nil, errors.Internal(err)
	}
	user.Wallet = wallet

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("user registered",
		zap.Uint("user_id", user.ID),
		zap.String("currency", wallet.Currency))
	return user, pair, nil
}

func (s *service) Login(email, phone, password, ip string) (*models.User, *TokenPair, error) {
	user, err := s.getUserByIdentifier(email, phone)
	if err != nil {
		return nil, nil, errors.ErrInvalidCredentials
	}

	now := s.now()
	if user.AccountLockoutUntil != nil {
		if now.Before(*user.AccountLockoutUntil) {
			return nil, nil, errors.ErrAccountLocked.WithDetails(map[string]interface{}{
				"retry_after_seconds": int(user.AccountLockoutUntil.Sub(now).Seconds()) + 1,
			})
		}
		user.AccountLockoutUntil = nil
	}

	if user.Status == "suspended" {
		return nil, nil, errors.ErrPermissionDenied.WithMessage("account is suspended")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.recordFailedLogin(user, now)
		return nil, nil, errors.ErrInvalidCredentials
	}

	user.FailedLoginAttempts = 0
	user.LastLoginAt = now
	if ip != "" {
		user.LastLoginIP = utils.HashIP(s.cfg.IPHashSalt, ip)
	}
	if err := s.users.Update(user); err != nil {
		logger.Warn("failed to record login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *service) RefreshTokens(refreshToken string) (*TokenPair, error) {
	_, claims, err := utils.ParseToken(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken.WithErr(err)
	}

	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	if user.TokenVersion != claims.TokenVersion {
		return nil, errors.ErrTokenExpired.WithMessage("session has been revoked")
	}

	return s.issueTokens(user)
}

func (s *service) Logout(userID uint) error {
	if err := s.users.IncrementTokenVersion(userID); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (s *service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return errors.ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return errors.ErrInvalidCredentials.WithMessage("old password is incorrect")
	}

	v := validation.New()
	v.Password("password", newPassword)
	if !v.Valid() {
		return errors.ErrValidation.WithDetails(v.Details())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal(err)
	}

	user.Password = string(hash)
	user.TokenVersion++ // revoke every outstanding session
	if err := s.users.Update(user); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (s *service) recordFailedLogin(user *models.User, now time.Time) {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= maxFailedLogins {
		until := now.Add(lockoutDuration)
		user.AccountLockoutUntil = &until
		user.FailedLoginAttempts = 0
		logger.Warn("account locked after repeated login failures",
			zap.Uint("user_id", user.ID),
			zap.Time("until", until))
	}
	if err := s.users.Update(user); err != nil {
		logger.Warn("failed to record login failure", zap.Uint("user_id", user.ID), zap.Error(err))
	}
}

func (s *service) issueTokens(user *models.User) (*TokenPair, error) {
	access, refresh, err := utils.GenerateTokens(&models.UserClaims{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
		Permissions:  models.GetDefaultPermissions(user.Role),
	})
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) getUserByIdentifier(email, phone string) (*models.User, error) {
	if email != "" {
		return s.users.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	}
	if phone != "" {
		return s.users.GetByPhone(strings.TrimSpace(phone))
	}
	return nil, repositories.ErrUserNotFound
}
