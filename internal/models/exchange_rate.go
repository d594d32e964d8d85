package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the stored quote for one currency pair. FetchedAt
// drives the staleness check; conversions refuse quotes older than the
// configured maximum age.
type ExchangeRate struct {
	ID        uint            `gorm:"primarykey"`
	Base      string          `gorm:"uniqueIndex:idx_rate_pair;not null"`
	Quote     string          `gorm:"uniqueIndex:idx_rate_pair;not null"`
	Rate      decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Source    string
	FetchedAt time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
