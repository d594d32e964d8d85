package errors

import "net/http"

var (
	ErrConfigMissing = &AppError{
		Code:      "CONFIG_MISSING",
		Message:   "service is not configured for this operation",
		Status:    http.StatusServiceUnavailable,
		Retryable: true,
	}
	ErrIdempotencyKeyRequired = &AppError{
		Code:    "SYSTEM_VALIDATION_FAILED",
		Message: "X-Idempotency-Key header is required",
		Status:  http.StatusBadRequest,
	}
	ErrIdempotencyKeyTooShort = &AppError{
		Code:    "SYSTEM_VALIDATION_FAILED",
		Message: "idempotency key must be at least 16 characters",
		Status:  http.StatusBadRequest,
	}
	ErrDuplicateRequest = &AppError{
		Code:      "TXN_DUPLICATE_REQUEST",
		Message:   "a request with this key is already being processed",
		Status:    http.StatusConflict,
		Retryable: true,
	}
	ErrRateLimitExceeded = &AppError{
		Code:      "RATE_LIMIT_EXCEEDED",
		Message:   "too many requests, slow down",
		Status:    http.StatusTooManyRequests,
		Retryable: true,
	}
	ErrLookupCooldown = &AppError{
		Code:      "RATE_COOLDOWN",
		Message:   "too many failed lookups, try again shortly",
		Status:    http.StatusTooManyRequests,
		Retryable: true,
	}
	ErrValidation = &AppError{
		Code:    "SYSTEM_VALIDATION_FAILED",
		Message: "request failed validation",
		Status:  http.StatusBadRequest,
	}
)
