package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformWallet accrues transfer fees, one row per currency. Rows are
// created on demand the first time a fee lands in a currency. TxCount
// counts the transfers that fed the balance.
type PlatformWallet struct {
	ID        uint            `gorm:"primarykey"`
	Currency  string          `gorm:"uniqueIndex;not null"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,4);default:0"`
	TxCount   int64           `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeeRecord is one collected fee, kept as history alongside the
// per-currency platform balances. USDEquivalent is computed with the
// exchange-rate table in force at collection time, so the global fee
// total in USD is a plain sum over this table.
type FeeRecord struct {
	ID            uint            `gorm:"primarykey"`
	TransactionID string          `gorm:"index;not null"`
	UserID        uint            `gorm:"index"`
	Currency      string          `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	USDEquivalent decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	CreatedAt     time.Time
}
