package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"qrwallet/internal/models"
)

// TransferRequest is a peer transfer order. Amount is denominated in
// the sender's wallet currency.
type TransferRequest struct {
	SenderID              uint
	RecipientWalletNumber string
	Amount                decimal.Decimal
	Note                  string
}

// TransferResult is what the sender sees after a completed transfer.
type TransferResult struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Currency      string          `json:"currency"`
	RecipientName string          `json:"recipient_name"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// DepositConfirmation carries the gateway-verified outcome of a
// deposit. Amount and Channel come from the verified gateway record,
// not the callback body.
type DepositConfirmation struct {
	Reference     string
	Amount        decimal.Decimal
	Channel       string
	GatewayStatus string
}

// LookupResult is the public view of a wallet, safe to show to a
// stranger about to send money to it.
type LookupResult struct {
	WalletNumber string `json:"wallet_number"`
	Name         string `json:"name"`
	Currency     string `json:"currency"`
}

// UserDirectory resolves account holders for receipt denormalization.
type UserDirectory interface {
	GetByID(id uint) (*models.User, error)
}

// RateConverter converts between wallet currencies. Conversions fail
// when no acceptably fresh rate exists.
type RateConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error)
}

// WalletCache is the optional hot layer for wallet reads. Every
// balance mutation invalidates the affected entries.
type WalletCache interface {
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	CacheWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, userID uint) error
}
