package repositories

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"qrwallet/internal/models"
	"qrwallet/internal/repositories/cache"
	keys "qrwallet/internal/utils/cache"
	"qrwallet/internal/utils/logger"
)

type userRepository struct {
	db    *gorm.DB
	cache *cache.CacheService
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *gorm.DB, cache *cache.CacheService) UserRepository {
	return &userRepository{
		db:    db,
		cache: cache,
	}
}

func (r *userRepository) Create(user *models.User) error {
	result := r.db.Create(user)
	if result.Error != nil {
		return ErrDatabaseOperation
	}
	return nil
}

func (r *userRepository) CreateWithWallet(user *models.User, wallet *models.Wallet) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		wallet.UserID = user.ID
		if err := tx.Create(wallet).Error; err != nil {
			return err
		}
		user.WalletID = &wallet.ID
		return tx.Model(user).Update("wallet_id", wallet.ID).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// The service pre-checks for duplicates, but two concurrent
		// registrations can still race to the unique index. The
		// translated sentinel no longer names the column, so look up
		// which one the winning row holds.
		var count int64
		if r.db.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error == nil && count > 0 {
			return ErrEmailTaken
		}
		return ErrPhoneTaken
	}
	return err
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	if r.cache != nil {
		key := keys.GenerateKey(keys.EntityUser, keys.KeyID, id)
		if user, err := r.cache.GetUser(context.Background(), key); err == nil {
			return user, nil
		}
	}

	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.CacheUser(context.Background(), &user); err != nil {
			logger.Warn("failed to cache user", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}

	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	result := r.db.Where("email = ?", email).First(&user)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, ErrDatabaseOperation
	}
	return &user, nil
}

func (r *userRepository) GetByPhone(phone string) (*models.User, error) {
	var user models.User
	result := r.db.Where("phone = ?", phone).First(&user)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, ErrDatabaseOperation
	}
	return &user, nil
}

func (r *userRepository) Update(user *models.User) error {
	result := r.db.Save(user)
	if result.Error != nil {
		return ErrDatabaseOperation
	}
	r.invalidate(user.ID)
	return nil
}

func (r *userRepository) IncrementTokenVersion(userID uint) error {
	if err := r.db.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("token_version", gorm.Expr("token_version + 1")).Error; err != nil {
		return err
	}
	r.invalidate(userID)
	return nil
}

func (r *userRepository) List(offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	if err := r.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, ErrDatabaseOperation
	}

	result := r.db.Offset(offset).Limit(limit).Order("id").Find(&users)
	if result.Error != nil {
		return nil, 0, ErrDatabaseOperation
	}

	return users, total, nil
}

func (r *userRepository) UpdatePassword(userID uint, hashedPassword string) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("password", hashedPassword)
	if result.Error != nil {
		return ErrDatabaseOperation
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	r.invalidate(userID)
	return nil
}

func (r *userRepository) UpdateStatus(userID uint, status string) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("status", status)
	if result.Error != nil {
		return ErrDatabaseOperation
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	r.invalidate(userID)
	return nil
}

func (r *userRepository) UpdateKYCStatus(userID uint, status string) error {
	updates := map[string]interface{}{
		"kyc_status":      status,
		"kyc_reviewed_at": time.Now(),
		// Legacy flags kept in sync for rows still read by old clients.
		"is_verified":  status == models.KYCStatusVerified,
		"kyc_approved": status == models.KYCStatusVerified,
	}
	result := r.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return ErrDatabaseOperation
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	r.invalidate(userID)
	return nil
}

func (r *userRepository) CreateKYCSubmission(sub *models.KYCSubmission) error {
	if err := r.db.Create(sub).Error; err != nil {
		return ErrDatabaseOperation
	}
	return nil
}

func (r *userRepository) GetKYCSubmissionByID(id uint) (*models.KYCSubmission, error) {
	var sub models.KYCSubmission
	err := r.db.First(&sub, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, ErrDatabaseOperation
	}
	return &sub, nil
}

func (r *userRepository) GetLatestKYCSubmission(userID uint) (*models.KYCSubmission, error) {
	var sub models.KYCSubmission
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, ErrDatabaseOperation
	}
	return &sub, nil
}

func (r *userRepository) ListPendingKYCSubmissions(offset, limit int) ([]*models.KYCSubmission, int64, error) {
	var subs []*models.KYCSubmission
	var total int64

	q := r.db.Model(&models.KYCSubmission{}).Where("status = ?", models.KYCStatusPending)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, ErrDatabaseOperation
	}
	if err := q.Order("created_at").Offset(offset).Limit(limit).Find(&subs).Error; err != nil {
		return nil, 0, ErrDatabaseOperation
	}
	return subs, total, nil
}

func (r *userRepository) UpdateKYCSubmission(sub *models.KYCSubmission) error {
	if err := r.db.Save(sub).Error; err != nil {
		return ErrDatabaseOperation
	}
	return nil
}

func (r *userRepository) ExecuteInTransaction(fn func(UserRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txRepo := &userRepository{db: tx, cache: r.cache}
		return fn(txRepo)
	})
}

func (r *userRepository) invalidate(userID uint) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateUser(context.Background(), userID); err != nil {
		logger.Warn("failed to invalidate user cache", zap.Uint("user_id", userID), zap.Error(err))
	}
}
