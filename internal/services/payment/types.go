package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"qrwallet/internal/gateway"
	"qrwallet/internal/models"
	"qrwallet/internal/services/ledger"
)

// DepositSession is an initialized hosted checkout the client is
// redirected to.
type DepositSession struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

// VerifyResult reports where a deposit stands after checking with the
// gateway. Credited is true only when this call moved money.
type VerifyResult struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Credited  bool            `json:"credited"`
}

// ChargeGateway is the deposit surface of the card/bank gateway.
type ChargeGateway interface {
	InitializeCharge(ctx context.Context, email string, amount decimal.Decimal, currency, reference, callbackURL string) (*gateway.ChargeSession, error)
	VerifyTransaction(ctx context.Context, reference string) (*gateway.ChargeStatus, error)
}

// Ledger settles verified deposits.
type Ledger interface {
	ConfirmDeposit(ctx context.Context, conf ledger.DepositConfirmation) (bool, error)
	FailDeposit(ctx context.Context, reference, gatewayStatus, reason string) (bool, error)
}

// UserDirectory resolves the account behind a deposit.
type UserDirectory interface {
	GetByID(id uint) (*models.User, error)
}
