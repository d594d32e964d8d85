package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal methods.
const (
	WithdrawalMethodBank = "bank"
	WithdrawalMethodMomo = "momo"
)

// Withdrawal is a payout from a wallet to an external destination.
// The wallet is debited before the gateway is called; a failed or
// errored gateway leg refunds the debit and records the compensation.
type Withdrawal struct {
	ID        uint            `gorm:"primarykey"`
	UserID    uint            `gorm:"index;not null"`
	WalletID  uint            `gorm:"index;not null"`
	Reference string          `gorm:"uniqueIndex;not null"`
	Method    string          `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Fee       decimal.Decimal `gorm:"type:numeric(20,4);default:0"`
	Currency  string          `gorm:"not null"`
	StatusModel
	GatewayStatus string
	// Bank payout destination, resolved before the transfer is created.
	BankCode      string
	AccountNumber string
	AccountName   string
	RecipientCode string
	// Mobile money destination.
	MomoNumber string
	// TransferCode identifies the gateway transfer while an OTP
	// confirmation is outstanding.
	TransferCode string `gorm:"index"`
	OTPRequired  bool   `gorm:"default:false"`
	Refunded     bool   `gorm:"default:false"`
	FailReason   string
	Metadata     JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
