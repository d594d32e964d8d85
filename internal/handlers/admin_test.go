package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
)

type ledgerRepoStub struct {
	repositories.LedgerRepository
	wallets []models.PlatformWallet
	total   decimal.Decimal
}

func (s *ledgerRepoStub) ListPlatformWallets() ([]models.PlatformWallet, error) {
	return s.wallets, nil
}

func (s *ledgerRepoStub) GetFeeTotalUSD() (decimal.Decimal, error) {
	return s.total, nil
}

func TestAdminFeesReport(t *testing.T) {
	repo := &ledgerRepoStub{
		wallets: []models.PlatformWallet{
			{Currency: "USD", Balance: decimal.RequireFromString("12.5"), TxCount: 3},
			{Currency: "XAF", Balance: decimal.NewFromInt(400), TxCount: 9},
		},
		total: decimal.RequireFromString("13.14"),
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/api/admin/fees", NewAdminHandler(nil, repo).Fees)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/admin/fees", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var report struct {
		TotalUSD string `json:"total_usd"`
		Wallets  []struct {
			Currency string `json:"Currency"`
			TxCount  int64  `json:"TxCount"`
		} `json:"wallets"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))

	assert.Equal(t, "13.14", report.TotalUSD)
	require.Len(t, report.Wallets, 2)
	assert.Equal(t, "USD", report.Wallets[0].Currency)
	assert.EqualValues(t, 3, report.Wallets[0].TxCount)
	assert.Equal(t, "XAF", report.Wallets[1].Currency)
	assert.EqualValues(t, 9, report.Wallets[1].TxCount)
}
