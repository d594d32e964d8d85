package validation

import (
	"github.com/shopspring/decimal"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
)

// ValidateWalletOperation rejects operations against missing or
// non-active wallets before any balance math happens.
func ValidateWalletOperation(wallet *models.Wallet) error {
	if wallet == nil {
		return errors.ErrWalletNotFound
	}
	if wallet.Status != models.WalletStatusActive {
		return errors.ErrWalletSuspended.WithDetails(map[string]interface{}{
			"status": wallet.Status,
			"reason": wallet.StatusReason,
		})
	}
	return nil
}

// ValidateAmount enforces the global transaction amount bounds.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.ErrAmountInvalid
	}
	if amount.LessThan(MinTransactionAmount) || amount.GreaterThan(MaxTransactionAmount) {
		return errors.ErrAmountInvalid.WithDetails(map[string]interface{}{
			"min": MinTransactionAmount.String(),
			"max": MaxTransactionAmount.String(),
		})
	}
	return nil
}

// ValidateIdempotencyKey enforces the key length bounds. Short keys
// are rejected outright rather than padded, since a short key usually
// means the client is sending something that is not unique.
func ValidateIdempotencyKey(key string) error {
	if key == "" {
		return errors.ErrIdempotencyKeyRequired
	}
	if len(key) < MinIdempotencyKeyLength {
		return errors.ErrIdempotencyKeyTooShort
	}
	if len(key) > MaxIdempotencyKeyLength {
		return errors.ErrValidation.WithMessage("idempotency key must be at most %d characters", MaxIdempotencyKeyLength)
	}
	return nil
}
