package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionTypeTransfer   = "TRANSFER"
	TransactionTypeDeposit    = "DEPOSIT"
	TransactionTypeWithdrawal = "WITHDRAWAL"
	TransactionTypeRefund     = "REFUND"
)

// Receipt directions. Every ledger movement writes one receipt per
// affected wallet; the sender's receipt is a "send", the receiver's a
// "receive".
const (
	DirectionSend    = "send"
	DirectionReceive = "receive"
)

// Transaction is one wallet's receipt of a ledger movement. A transfer
// produces two rows sharing the same TransactionID, one per wallet.
type Transaction struct {
	ID            uint   `gorm:"primarykey"`
	TransactionID string `gorm:"index;not null"` // shared across the receipts of one movement
	UserID        uint   `gorm:"index;not null"`
	Type          string `gorm:"not null"`
	Direction     string `gorm:"not null"`
	// Denormalized party details so receipts render without joins.
	SenderWalletNumber   string
	ReceiverWalletNumber string
	SenderName           string
	ReceiverName         string
	Amount               decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Fee                  decimal.Decimal `gorm:"type:numeric(20,4);default:0"`
	Currency             string          `gorm:"not null"`
	// Conversion details, set only when sender and receiver wallets
	// hold different currencies.
	ConvertedAmount   *decimal.Decimal `gorm:"type:numeric(20,4)"`
	ExchangeRate      *decimal.Decimal `gorm:"type:numeric(20,8)"`
	ConvertedCurrency string
	StatusModel
	GatewayStatus string // raw upstream vocabulary, kept verbatim
	Description   string
	Reference     string `gorm:"index"`
	Metadata      JSON   `gorm:"type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
