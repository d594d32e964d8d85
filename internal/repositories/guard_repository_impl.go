package repositories

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"qrwallet/internal/models"
)

type guardRepository struct {
	db *gorm.DB
}

func NewGuardRepository(db *gorm.DB) GuardRepository {
	return &guardRepository{
		db: db,
	}
}

func (r *guardRepository) CreateIdempotencyKey(key *models.IdempotencyKey) error {
	if err := r.db.Create(key).Error; err != nil {
		return translateDuplicate(fmt.Errorf("failed to create idempotency key: %w", err), ErrIdempotencyKeyExists)
	}
	return nil
}

func (r *guardRepository) GetIdempotencyKeyForUpdate(key string) (*models.IdempotencyKey, error) {
	var record models.IdempotencyKey
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("key = ?", key).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrIdempotencyKeyNotFound
		}
		return nil, fmt.Errorf("failed to lock idempotency key: %w", err)
	}
	return &record, nil
}

func (r *guardRepository) UpdateIdempotencyKey(key *models.IdempotencyKey) error {
	if err := r.db.Save(key).Error; err != nil {
		return fmt.Errorf("failed to update idempotency key: %w", err)
	}
	return nil
}

func (r *guardRepository) DeleteIdempotencyKey(id uint) error {
	if err := r.db.Delete(&models.IdempotencyKey{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete idempotency key: %w", err)
	}
	return nil
}

func (r *guardRepository) DeleteExpiredIdempotencyKeys(before time.Time) (int64, error) {
	result := r.db.Where("expires_at < ?", before).Delete(&models.IdempotencyKey{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency keys: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *guardRepository) GetRateLimitForUpdate(scope, action string) (*models.RateLimitEntry, error) {
	var entry models.RateLimitEntry
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("scope = ? AND action = ?", scope, action).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRateLimitNotFound
		}
		return nil, fmt.Errorf("failed to lock rate limit entry: %w", err)
	}
	return &entry, nil
}

func (r *guardRepository) SaveRateLimit(entry *models.RateLimitEntry) error {
	if err := r.db.Save(entry).Error; err != nil {
		return fmt.Errorf("failed to save rate limit entry: %w", err)
	}
	return nil
}

func (r *guardRepository) DeleteStaleRateLimits(before time.Time) (int64, error) {
	result := r.db.Where("updated_at < ?", before).Delete(&models.RateLimitEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale rate limit entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *guardRepository) CreateAuditLog(entry *models.AuditLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *guardRepository) ListAuditLogs(userID uint, offset, limit int) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	q := r.db.Model(&models.AuditLog{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

func (r *guardRepository) ExecuteInTransaction(fn func(GuardRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txRepo := &guardRepository{db: tx}
		return fn(txRepo)
	})
}
