package models

import "time"

// Idempotency record states.
const (
	IdempotencyStatusPending   = "pending"
	IdempotencyStatusCompleted = "completed"
	IdempotencyStatusFailed    = "failed"
)

// IdempotencyKey records one client-supplied key. The key is globally
// unique: reuse across users is rejected at claim time, so ownership
// lives on the record rather than in the index. A completed record
// replays its stored result; a pending record means the original
// request is still in flight.
type IdempotencyKey struct {
	ID        uint   `gorm:"primarykey"`
	Key       string `gorm:"uniqueIndex;not null"`
	UserID    uint   `gorm:"index;not null"`
	Operation string `gorm:"not null"`
	Status    string `gorm:"not null;default:'pending'"`
	// Result holds the JSON response of the completed operation so
	// replays return byte-for-byte what the first call returned.
	Result    JSON `gorm:"type:jsonb"`
	LastError string
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record's TTL has lapsed at now.
func (k *IdempotencyKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
