package validation

import "github.com/shopspring/decimal"

const (
	// Password requirements
	MinPasswordLength = 8
	MaxPasswordLength = 72

	// Idempotency key bounds
	MinIdempotencyKeyLength = 16
	MaxIdempotencyKeyLength = 128

	// String lengths
	MaxDescriptionLength = 500
	MaxReferenceLength   = 100
)

var (
	// Amount limits
	MinTransactionAmount = decimal.RequireFromString("0.01")
	MaxTransactionAmount = decimal.RequireFromString("1000000")
)
