package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a card or bank deposit collected through the payment
// gateway. The gateway reference is the natural key; webhook delivery
// and manual verification may both observe the same payment, so credit
// is guarded by the Processed flag.
type Payment struct {
	ID        uint            `gorm:"primarykey"`
	UserID    uint            `gorm:"index;not null"`
	Reference string          `gorm:"uniqueIndex;not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Currency  string          `gorm:"not null"`
	Channel   string          // card, bank, ussd as reported upstream
	StatusModel
	GatewayStatus string
	// Processed flips exactly once, inside the same transaction that
	// credits the wallet.
	Processed        bool `gorm:"default:false"`
	AuthorizationURL string
	AccessCode       string
	PaidAt           *time.Time
	Metadata         JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
