package exchange

import (
	"context"
	"fmt"
	"testing"
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rateStoreFake struct {
	rates map[string]models.ExchangeRate
}

func newRateStoreFake() *rateStoreFake {
	return &rateStoreFake{rates: map[string]models.ExchangeRate{}}
}

func (f *rateStoreFake) pairKey(base, quote string) string { return base + "/" + quote }

func (f *rateStoreFake) UpsertRate(rate *models.ExchangeRate) error {
	f.rates[f.pairKey(rate.Base, rate.Quote)] = *rate
	return nil
}

func (f *rateStoreFake) GetStoredRate(base, quote string) (*models.ExchangeRate, error) {
	rate, ok := f.rates[f.pairKey(base, quote)]
	if !ok {
		return nil, fmt.Errorf("exchange rate not found")
	}
	cp := rate
	return &cp, nil
}

func (f *rateStoreFake) seed(base, quote, rate string, fetchedAt time.Time) {
	f.rates[f.pairKey(base, quote)] = models.ExchangeRate{
		Base: base, Quote: quote,
		Rate:      decimal.RequireFromString(rate),
		Source:    "seed",
		FetchedAt: fetchedAt,
	}
}

type fetcherFake struct {
	table *Table
	err   error
	calls int
}

func (f *fetcherFake) FetchTable(ctx context.Context, base string) (*Table, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

func TestRateSameCurrencyIsOne(t *testing.T) {
	svc := NewService(newRateStoreFake(), nil, nil, Config{})

	rate, err := svc.Rate(context.Background(), "USD", "usd")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestRateDirectPair(t *testing.T) {
	store := newRateStoreFake()
	store.seed("USD", "XAF", "600.50", time.Now())
	svc := NewService(store, nil, nil, Config{})

	rate, err := svc.Rate(context.Background(), "USD", "XAF")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("600.50")))
}

func TestRateInvertedPair(t *testing.T) {
	store := newRateStoreFake()
	store.seed("USD", "XAF", "600", time.Now())
	svc := NewService(store, nil, nil, Config{})

	rate, err := svc.Rate(context.Background(), "XAF", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.00166667")),
		"got %s", rate)
}

func TestRateTriangulatesThroughPivot(t *testing.T) {
	store := newRateStoreFake()
	store.seed("XAF", "USD", "0.0016", time.Now())
	store.seed("USD", "NGN", "1500", time.Now())
	svc := NewService(store, nil, nil, Config{})

	rate, err := svc.Rate(context.Background(), "XAF", "NGN")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("2.4")), "got %s", rate)
}

func TestRateStaleFailsClosed(t *testing.T) {
	store := newRateStoreFake()
	store.seed("USD", "XAF", "600", time.Now().Add(-25*time.Hour))
	svc := NewService(store, nil, nil, Config{MaxStaleness: 24 * time.Hour})

	_, err := svc.Rate(context.Background(), "USD", "XAF")
	assert.ErrorIs(t, err, errors.ErrRateStale)
}

func TestRateWithinStalenessBoundIsServed(t *testing.T) {
	store := newRateStoreFake()
	store.seed("USD", "XAF", "600", time.Now().Add(-23*time.Hour))
	svc := NewService(store, nil, nil, Config{MaxStaleness: 24 * time.Hour})

	rate, err := svc.Rate(context.Background(), "USD", "XAF")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(600)))
}

func TestRateUnknownPairFailsWhenNoFetcher(t *testing.T) {
	svc := NewService(newRateStoreFake(), nil, nil, Config{})

	_, err := svc.Rate(context.Background(), "USD", "XAF")
	assert.ErrorIs(t, err, errors.ErrRateUnavailable)
}

func TestRateFetchesWhenStoreIsEmpty(t *testing.T) {
	store := newRateStoreFake()
	fetcher := &fetcherFake{table: &Table{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"XAF": decimal.NewFromInt(600),
			"NGN": decimal.NewFromInt(1500),
		},
		Source:    "test",
		FetchedAt: time.Now(),
	}}
	svc := NewService(store, nil, fetcher, Config{})

	rate, err := svc.Rate(context.Background(), "USD", "XAF")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, 1, fetcher.calls)

	// Second read is served from the store.
	_, err = svc.Rate(context.Background(), "USD", "NGN")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestRateSurvivesFetcherOutageWithFreshStore(t *testing.T) {
	store := newRateStoreFake()
	store.seed("USD", "XAF", "600", time.Now().Add(-time.Hour))
	fetcher := &fetcherFake{err: fmt.Errorf("source down")}
	svc := NewService(store, nil, fetcher, Config{})

	rate, err := svc.Rate(context.Background(), "USD", "XAF")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, 0, fetcher.calls, "fresh store must not trigger a fetch")
}

func TestConvertRoundsToLedgerPrecision(t *testing.T) {
	store := newRateStoreFake()
	store.seed("USD", "XAF", "601.2345", time.Now())
	svc := NewService(store, nil, nil, Config{})

	converted, rate, err := svc.Convert(context.Background(), decimal.RequireFromString("10.33"), "USD", "XAF")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("601.2345")))
	assert.True(t, converted.Equal(decimal.RequireFromString("6210.7524")), "got %s", converted)
}

func TestRefreshStoresWholeTable(t *testing.T) {
	store := newRateStoreFake()
	fetcher := &fetcherFake{table: &Table{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"XAF": decimal.NewFromInt(600),
			"KES": decimal.RequireFromString("129.5"),
		},
		Source:    "test",
		FetchedAt: time.Now(),
	}}
	svc := NewService(store, nil, fetcher, Config{})

	require.NoError(t, svc.Refresh(context.Background()))
	assert.Len(t, store.rates, 2, "self pair must be skipped")

	stored, err := store.GetStoredRate("USD", "KES")
	require.NoError(t, err)
	assert.True(t, stored.Rate.Equal(decimal.RequireFromString("129.5")))
}
