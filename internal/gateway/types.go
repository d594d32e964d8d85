// Package gateway holds the normalized types the payment-gateway
// clients return. Status strings stay in each gateway's own
// vocabulary; the status service normalizes them at the point of use.
package gateway

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bank is one payout-capable bank as listed by the gateway.
type Bank struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Currency string `json:"currency"`
}

// AccountDetail is a resolved bank account, used to show the holder's
// name before a withdrawal is committed.
type AccountDetail struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// ChargeSession is an initialized hosted checkout.
type ChargeSession struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// ChargeStatus is the gateway's own view of a charge, fetched from its
// status-query endpoint. Amount is in major units.
type ChargeStatus struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	Channel   string
	PaidAt    *time.Time
}

// TransferResult is the gateway's view of a payout leg.
type TransferResult struct {
	Reference    string
	TransferCode string
	Status       string
	RequiresOTP  bool
}

// CollectionStatus is a mobile-money operator's view of a collection
// or disbursement leg.
type CollectionStatus struct {
	ExternalID string
	Status     string
	Reason     string
}
