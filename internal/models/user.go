package models

import (
	"time"

	"gorm.io/gorm"
)

// KYC verification states. Legacy rows carry only the IsVerified /
// KYCApproved booleans and are migrated to KYCStatus on first read.
const (
	KYCStatusUnverified = "unverified"
	KYCStatusPending    = "pending"
	KYCStatusVerified   = "verified"
	KYCStatusRejected   = "rejected"
)

type User struct {
	gorm.Model
	Email               string  `gorm:"uniqueIndex;not null"` // Unique index on Email
	Password            string  `gorm:"not null" json:"-"`
	Name                string  `gorm:"not null"`
	Phone               string  `gorm:"uniqueIndex;not null"` // Unique index on Phone
	Country             string  `gorm:"default:'NG'"`
	Role                string  `gorm:"default:'user'"`
	WalletID            *uint   `gorm:"unique;default:null"`
	Wallet              *Wallet `gorm:"foreignKey:WalletID"`
	Status              string  `gorm:"default:'active'"`
	KYCStatus           string  `gorm:"default:'unverified'"`
	KYCDocumentType     string
	KYCDocumentRef      string
	KYCSubmittedAt      *time.Time
	KYCReviewedAt       *time.Time
	IsVerified          bool `gorm:"default:false"` // legacy flag, superseded by KYCStatus
	KYCApproved         bool `gorm:"default:false"` // legacy flag, superseded by KYCStatus
	LastLoginAt         time.Time
	LastLoginIP         string
	FailedLoginAttempts int `gorm:"default:0"`
	AccountLockoutUntil *time.Time
	TokenVersion        int `gorm:"default:1"`
}
