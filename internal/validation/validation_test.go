package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
)

func TestValidateIdempotencyKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want error
	}{
		{"missing key", "", errors.ErrIdempotencyKeyRequired},
		{"fifteen chars rejected", "abcdefghijklmno", errors.ErrIdempotencyKeyTooShort},
		{"sixteen chars accepted", "abcdefghijklmnop", nil},
		{"uuid accepted", "9b2f2f9e-4a1c-4a77-9f37-1a2b3c4d5e6f", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdempotencyKey(tt.key)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateIdempotencyKeyTooLong(t *testing.T) {
	long := make([]byte, MaxIdempotencyKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}
	err := ValidateIdempotencyKey(string(long))
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("10.50")))
	assert.ErrorIs(t, ValidateAmount(decimal.Zero), errors.ErrAmountInvalid)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("-5")), errors.ErrAmountInvalid)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("1000001")), errors.ErrAmountInvalid)
}

func TestValidateWalletOperation(t *testing.T) {
	assert.ErrorIs(t, ValidateWalletOperation(nil), errors.ErrWalletNotFound)

	suspended := &models.Wallet{Status: models.WalletStatusSuspended, StatusReason: "chargeback review"}
	err := ValidateWalletOperation(suspended)
	assert.ErrorIs(t, err, errors.ErrWalletSuspended)

	active := &models.Wallet{Status: models.WalletStatusActive}
	assert.NoError(t, ValidateWalletOperation(active))
}

func TestValidatorPassword(t *testing.T) {
	v := New()
	v.Password("password", "Weak1!aa")
	assert.True(t, v.Valid(), "errors: %v", v.Errors)

	v = New()
	v.Password("password", "alllowercase1!")
	assert.False(t, v.Valid())
	assert.Contains(t, v.Errors, "password")
}

func TestValidatorEmailAndPhone(t *testing.T) {
	v := New()
	v.Email("email", "ada@example.com")
	v.Phone("phone", "+2348012345678")
	assert.True(t, v.Valid(), "errors: %v", v.Errors)

	v = New()
	v.Email("email", "not-an-email")
	v.Phone("phone", "12ab")
	assert.Len(t, v.Errors, 2)
}
