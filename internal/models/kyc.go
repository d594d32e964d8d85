package models

import (
	"time"

	"gorm.io/gorm"
)

// KYCSubmission is one identity verification attempt. The latest
// decision is mirrored onto User.KYCStatus; submissions themselves are
// kept for the review trail.
type KYCSubmission struct {
	gorm.Model
	UserID       uint   `gorm:"index;not null"`
	Status       string `gorm:"default:'pending'"`
	DocumentType string `gorm:"not null"`
	DocumentRef  string `gorm:"not null"`
	ScanURL      string
	ReviewedBy   *uint
	ReviewedAt   *time.Time
	RejectReason string
}
