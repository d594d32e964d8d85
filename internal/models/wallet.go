package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet statuses.
const (
	WalletStatusActive    = "active"
	WalletStatusSuspended = "suspended"
)

type Wallet struct {
	ID           uint            `gorm:"primarykey"`
	UserID       uint            `gorm:"uniqueIndex;not null"`
	WalletNumber string          `gorm:"uniqueIndex;not null"` // e.g. QRW-4821-9057-3316
	Balance      decimal.Decimal `gorm:"type:numeric(20,4);default:0"`
	Currency     string          `gorm:"default:'NGN'"`
	Status       string          `gorm:"default:'active'"`
	StatusReason string          `gorm:"default:''"`
	// Spend counters, reset lazily when their window rolls over.
	DailySpent    decimal.Decimal `gorm:"type:numeric(20,4);default:0"`
	DailyWindow   time.Time
	MonthlySpent  decimal.Decimal `gorm:"type:numeric(20,4);default:0"`
	MonthlyWindow time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	// Ensure balance starts at 0
	w.Balance = decimal.Zero
	w.DailySpent = decimal.Zero
	w.MonthlySpent = decimal.Zero
	return nil
}

// SameDay reports whether the wallet's daily window covers t.
func (w *Wallet) SameDay(t time.Time) bool {
	wy, wm, wd := w.DailyWindow.UTC().Date()
	ty, tm, td := t.UTC().Date()
	return wy == ty && wm == tm && wd == td
}

// SameMonth reports whether the wallet's monthly window covers t.
func (w *Wallet) SameMonth(t time.Time) bool {
	wy, wm, _ := w.MonthlyWindow.UTC().Date()
	ty, tm, _ := t.UTC().Date()
	return wy == ty && wm == tm
}
