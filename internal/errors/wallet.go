package errors

import "net/http"

var (
	ErrInsufficientBalance = &AppError{
		Code:    "WALLET_INSUFFICIENT_FUNDS",
		Message: "insufficient wallet balance",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrWalletNotFound = &AppError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
		Status:  http.StatusNotFound,
	}
	ErrWalletSuspended = &AppError{
		Code:    "WALLET_SUSPENDED",
		Message: "wallet is suspended",
		Status:  http.StatusForbidden,
	}
	ErrDailyLimitExceeded = &AppError{
		Code:    "WALLET_LIMIT_EXCEEDED",
		Message: "daily spending limit exceeded",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrRateUnavailable = &AppError{
		Code:    "SERVICE_RATE_UNAVAILABLE",
		Message: "no exchange rate for currency pair",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrRateStale = &AppError{
		Code:      "SERVICE_RATE_STALE",
		Message:   "exchange rate is too old to use",
		Status:    http.StatusUnprocessableEntity,
		Retryable: true,
	}
)
