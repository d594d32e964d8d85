package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mobile money flow kinds.
const (
	MomoKindCollection   = "collection"   // request-to-pay into the platform
	MomoKindDisbursement = "disbursement" // payout from the platform
)

// MomoTransaction is one leg against the mobile money operator. The
// ExternalID is generated locally and quoted back by operator webhooks.
type MomoTransaction struct {
	ID          uint            `gorm:"primarykey"`
	UserID      uint            `gorm:"index;not null"`
	Kind        string          `gorm:"not null"`
	ExternalID  string          `gorm:"uniqueIndex;not null"`
	PhoneNumber string          `gorm:"not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Currency    string          `gorm:"not null"`
	StatusModel
	GatewayStatus string
	Processed     bool `gorm:"default:false"`
	PayerMessage  string
	Reason        string // operator failure reason, verbatim
	Metadata      JSON   `gorm:"type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
