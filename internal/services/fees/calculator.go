// Package fees computes the platform's fee schedule.
package fees

import "github.com/shopspring/decimal"

// Default schedule: 1% of the amount, never below 10 and never above
// 100 units of the sender's currency.
var (
	DefaultPercent = decimal.NewFromFloat(0.01)
	DefaultMin     = decimal.NewFromInt(10)
	DefaultMax     = decimal.NewFromInt(100)
)

// Calculator applies a percentage fee clamped to a floor and a cap.
// All values are in the sender's currency.
type Calculator struct {
	percent decimal.Decimal
	min     decimal.Decimal
	max     decimal.Decimal
}

// NewCalculator builds a calculator, falling back to the default
// schedule for any zero value.
func NewCalculator(percent, min, max decimal.Decimal) *Calculator {
	if percent.IsZero() {
		percent = DefaultPercent
	}
	if min.IsZero() {
		min = DefaultMin
	}
	if max.IsZero() {
		max = DefaultMax
	}
	return &Calculator{percent: percent, min: min, max: max}
}

// TransferFee returns the fee charged on a peer transfer.
func (c *Calculator) TransferFee(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(c.percent).Round(4)
	if fee.LessThan(c.min) {
		return c.min
	}
	if fee.GreaterThan(c.max) {
		return c.max
	}
	return fee
}
