package withdrawal

import (
	"context"

	"github.com/shopspring/decimal"

	"qrwallet/internal/gateway"
)

// Request initiates a payout. Method selects which destination fields
// are required: bank needs BankCode and AccountNumber, momo needs
// Phone.
type Request struct {
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	BankCode      string          `json:"bank_code,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	Phone         string          `json:"phone,omitempty"`
}

// Result reports where a withdrawal stands after an RPC. TransferCode
// is set when the gateway issued one, and must be echoed back with the
// OTP when RequiresOTP is true.
type Result struct {
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	RequiresOTP  bool   `json:"requires_otp,omitempty"`
	TransferCode string `json:"transfer_code,omitempty"`
}

// BankGateway is the payout surface of the card/bank gateway.
type BankGateway interface {
	ListBanks(ctx context.Context, currency string) ([]gateway.Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*gateway.AccountDetail, error)
	CreateRecipient(ctx context.Context, name, accountNumber, bankCode, currency string) (string, error)
	InitiateTransfer(ctx context.Context, amount decimal.Decimal, currency, recipientCode, reference, reason string) (*gateway.TransferResult, error)
	FinalizeTransfer(ctx context.Context, transferCode, otp string) (*gateway.TransferResult, error)
	VerifyTransfer(ctx context.Context, reference string) (*gateway.TransferResult, error)
}

// MomoGateway is the disbursement surface of the mobile-money API.
type MomoGateway interface {
	Transfer(ctx context.Context, referenceID string, amount decimal.Decimal, currency, payeePhone, message, note string) error
	TransferStatus(ctx context.Context, referenceID string) (*gateway.CollectionStatus, error)
}

// WalletCache invalidates cached wallet reads after a balance change.
type WalletCache interface {
	InvalidateWallet(ctx context.Context, userID uint) error
}
