package exchange

import (
	"context"
	"time"

	"qrwallet/internal/models"

	"github.com/shopspring/decimal"
)

// Service resolves exchange rates and converts amounts between wallet
// currencies.
type Service interface {
	// Rate returns how many units of quote one unit of base buys.
	Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
	// Convert returns the converted amount and the rate used.
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error)
	// Refresh pulls the latest table from the configured source and
	// stores it.
	Refresh(ctx context.Context) error
	// StartRefresher refreshes on the configured interval until ctx is
	// cancelled.
	StartRefresher(ctx context.Context)
}

// RateStore is the persistent rate table.
type RateStore interface {
	UpsertRate(rate *models.ExchangeRate) error
	GetStoredRate(base, quote string) (*models.ExchangeRate, error)
}

// RateCache is the hot layer in front of the store.
type RateCache interface {
	CacheRate(ctx context.Context, rate *models.ExchangeRate, ttl time.Duration) error
	GetRate(ctx context.Context, base, quote string) (*models.ExchangeRate, error)
}

// Table is one provider response: the rates quoted against Base.
type Table struct {
	Base      string
	Rates     map[string]decimal.Decimal
	Source    string
	FetchedAt time.Time
}

// Fetcher pulls a fresh table from the external rate source.
type Fetcher interface {
	FetchTable(ctx context.Context, base string) (*Table, error)
}
