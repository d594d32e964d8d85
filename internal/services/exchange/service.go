// Package exchange maintains the cached exchange-rate table used for
// cross-currency transfers and the platform's USD fee accounting.
//
// Rates flow source -> store -> redis; reads go the other way. A rate
// past MaxStaleness is never used: a conversion with no acceptable
// rate fails closed rather than moving money at a guessed price.
package exchange

import (
	"context"
	"strings"
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/utils/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Defaults applied by NewService for zero config values.
const (
	DefaultPivot           = "USD"
	DefaultRefreshInterval = time.Hour
	DefaultMaxStaleness    = 24 * time.Hour
	DefaultCacheTTL        = 15 * time.Minute
)

type Config struct {
	Pivot           string
	Currencies      []string
	RefreshInterval time.Duration
	MaxStaleness    time.Duration
	CacheTTL        time.Duration
}

type service struct {
	store   RateStore
	cache   RateCache
	fetcher Fetcher
	cfg     Config
	now     func() time.Time
}

// NewService builds the rate service. cache and fetcher may be nil:
// without a fetcher the service serves whatever the store holds (a
// seeded table), without a cache every read hits the store.
func NewService(store RateStore, cache RateCache, fetcher Fetcher, cfg Config) Service {
	if store == nil {
		panic("rate store is required")
	}
	if cfg.Pivot == "" {
		cfg.Pivot = DefaultPivot
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.MaxStaleness <= 0 {
		cfg.MaxStaleness = DefaultMaxStaleness
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &service{store: store, cache: cache, fetcher: fetcher, cfg: cfg, now: time.Now}
}

func (s *service) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	if rate := s.fromCache(ctx, base, quote); rate != nil {
		return rate.Rate, nil
	}

	if rate := s.fromStore(ctx, base, quote); rate != nil {
		return rate.Rate, nil
	}

	// Nothing usable on hand; try the source directly.
	if err := s.refreshPair(ctx, base); err != nil {
		logger.Warn("exchange rate fetch failed",
			zap.String("base", base),
			zap.String("quote", quote),
			zap.Error(err),
		)
	}
	if rate := s.fromStore(ctx, base, quote); rate != nil {
		return rate.Rate, nil
	}

	// Distinguish "never had it" from "have it but too old".
	if stored, err := s.store.GetStoredRate(base, quote); err == nil && stored != nil {
		return decimal.Zero, errors.ErrRateStale.WithDetails(map[string]interface{}{
			"base":       base,
			"quote":      quote,
			"fetched_at": stored.FetchedAt,
		})
	}
	return decimal.Zero, errors.ErrRateUnavailable.WithDetails(map[string]interface{}{
		"base":  base,
		"quote": quote,
	})
}

func (s *service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := s.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount.Mul(rate).Round(4), rate, nil
}

// fromCache returns a fresh cached rate or nil.
func (s *service) fromCache(ctx context.Context, base, quote string) *models.ExchangeRate {
	if s.cache == nil {
		return nil
	}
	rate, err := s.cache.GetRate(ctx, base, quote)
	if err != nil {
		logger.Warn("rate cache read failed", zap.Error(err))
		return nil
	}
	if rate == nil || !s.fresh(rate) {
		return nil
	}
	return rate
}

// fromStore resolves base->quote from the persistent table: direct
// pair, inverted pair, then triangulated through the pivot. Accepted
// rates are copied into the cache.
func (s *service) fromStore(ctx context.Context, base, quote string) *models.ExchangeRate {
	if direct, err := s.store.GetStoredRate(base, quote); err == nil && direct != nil && s.fresh(direct) {
		s.cachePut(ctx, direct)
		return direct
	}

	if inverse, err := s.store.GetStoredRate(quote, base); err == nil && inverse != nil && s.fresh(inverse) && !inverse.Rate.IsZero() {
		derived := &models.ExchangeRate{
			Base:      base,
			Quote:     quote,
			Rate:      decimal.NewFromInt(1).DivRound(inverse.Rate, 8),
			Source:    inverse.Source,
			FetchedAt: inverse.FetchedAt,
		}
		s.cachePut(ctx, derived)
		return derived
	}

	pivot := s.cfg.Pivot
	if base == pivot || quote == pivot {
		return nil
	}
	toPivot, err1 := s.store.GetStoredRate(base, pivot)
	fromPivot, err2 := s.store.GetStoredRate(pivot, quote)
	if err1 == nil && err2 == nil && toPivot != nil && fromPivot != nil &&
		s.fresh(toPivot) && s.fresh(fromPivot) {
		fetched := toPivot.FetchedAt
		if fromPivot.FetchedAt.Before(fetched) {
			fetched = fromPivot.FetchedAt
		}
		derived := &models.ExchangeRate{
			Base:      base,
			Quote:     quote,
			Rate:      toPivot.Rate.Mul(fromPivot.Rate).Round(8),
			Source:    toPivot.Source,
			FetchedAt: fetched,
		}
		s.cachePut(ctx, derived)
		return derived
	}
	return nil
}

func (s *service) fresh(rate *models.ExchangeRate) bool {
	return s.now().Sub(rate.FetchedAt) <= s.cfg.MaxStaleness
}

func (s *service) cachePut(ctx context.Context, rate *models.ExchangeRate) {
	if s.cache == nil {
		return
	}
	if err := s.cache.CacheRate(ctx, rate, s.cfg.CacheTTL); err != nil {
		logger.Warn("rate cache write failed", zap.Error(err))
	}
}

// refreshPair fetches the table for one base and stores every pair the
// service cares about.
func (s *service) refreshPair(ctx context.Context, base string) error {
	if s.fetcher == nil {
		return errors.ErrConfigMissing.WithDetails(map[string]interface{}{
			"service": "exchange",
		})
	}
	table, err := s.fetcher.FetchTable(ctx, base)
	if err != nil {
		return err
	}
	return s.storeTable(ctx, table)
}

func (s *service) storeTable(ctx context.Context, table *Table) error {
	var firstErr error
	for quote, rate := range table.Rates {
		quote = strings.ToUpper(quote)
		if quote == table.Base {
			continue
		}
		record := &models.ExchangeRate{
			Base:      table.Base,
			Quote:     quote,
			Rate:      rate,
			Source:    table.Source,
			FetchedAt: table.FetchedAt,
		}
		if err := s.store.UpsertRate(record); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.cachePut(ctx, record)
	}
	return firstErr
}

// Refresh pulls the pivot table, which is enough to derive every
// supported pair through triangulation.
func (s *service) Refresh(ctx context.Context) error {
	return s.refreshPair(ctx, s.cfg.Pivot)
}

func (s *service) StartRefresher(ctx context.Context) {
	if s.fetcher == nil {
		logger.Info("exchange refresher disabled: no rate source configured")
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.RefreshInterval)
		defer ticker.Stop()

		if err := s.Refresh(ctx); err != nil {
			logger.Warn("initial exchange refresh failed", zap.Error(err))
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					logger.Warn("exchange refresh failed", zap.Error(err))
				} else {
					logger.Debug("exchange rates refreshed")
				}
			}
		}
	}()
}
