package models

import "time"

// RateLimitEntry is the persisted sliding window for one caller and
// action. Timestamps outside the window are pruned on every touch, so
// the list stays bounded by the action's limit.
type RateLimitEntry struct {
	ID         uint     `gorm:"primarykey"`
	Scope      string   `gorm:"uniqueIndex:idx_rate_scope_action;not null"` // e.g. user:42, ip:9f2c...
	Action     string   `gorm:"uniqueIndex:idx_rate_scope_action;not null"`
	Timestamps TimeList `gorm:"type:jsonb"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
