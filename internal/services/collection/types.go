package collection

import (
	"context"

	"github.com/shopspring/decimal"

	"qrwallet/internal/gateway"
)

// Request asks the operator to pull money from the payer's mobile
// wallet.
type Request struct {
	Amount decimal.Decimal `json:"amount"`
	Phone  string          `json:"phone"`
}

// Result reports where a collection stands. The external ID is ours;
// the operator quotes it back in callbacks.
type Result struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// Gateway is the collection surface of the mobile money operator.
type Gateway interface {
	RequestToPay(ctx context.Context, referenceID string, amount decimal.Decimal, currency, payerPhone, message, note string) error
	RequestToPayStatus(ctx context.Context, referenceID string) (*gateway.CollectionStatus, error)
}

// Ledger settles verified collections.
type Ledger interface {
	CreditCollection(ctx context.Context, externalID, gatewayStatus string) (bool, error)
	FailCollection(ctx context.Context, externalID, gatewayStatus, reason string) (bool, error)
}
