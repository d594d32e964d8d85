package repositories

import (
	"errors"
	"time"

	"qrwallet/internal/models"
)

var (
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	ErrIdempotencyKeyExists   = errors.New("idempotency key already exists")
	ErrRateLimitNotFound      = errors.New("rate limit entry not found")
)

// GuardRepository persists the request guards that sit in front of
// money movement: idempotency keys, rate-limit windows and the audit
// trail.
type GuardRepository interface {
	// Idempotency records
	CreateIdempotencyKey(key *models.IdempotencyKey) error
	// GetIdempotencyKeyForUpdate locks the record so two concurrent
	// requests with the same key serialize on the claim. Keys are
	// global; the caller checks ownership.
	GetIdempotencyKeyForUpdate(key string) (*models.IdempotencyKey, error)
	UpdateIdempotencyKey(key *models.IdempotencyKey) error
	DeleteIdempotencyKey(id uint) error
	// DeleteExpiredIdempotencyKeys removes records whose TTL lapsed
	// before the cutoff. Returns the number of rows removed.
	DeleteExpiredIdempotencyKeys(before time.Time) (int64, error)

	// Rate-limit windows
	GetRateLimitForUpdate(scope, action string) (*models.RateLimitEntry, error)
	SaveRateLimit(entry *models.RateLimitEntry) error
	// DeleteStaleRateLimits removes windows untouched since the cutoff.
	DeleteStaleRateLimits(before time.Time) (int64, error)

	// Audit trail
	CreateAuditLog(entry *models.AuditLog) error
	ListAuditLogs(userID uint, offset, limit int) ([]models.AuditLog, int64, error)

	// ExecuteInTransaction runs fn against a transaction-scoped copy
	// of the repository.
	ExecuteInTransaction(fn func(GuardRepository) error) error
}
