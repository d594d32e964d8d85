package errors

import "net/http"

var (
	ErrTransactionNotFound = &AppError{
		Code:    "TXN_NOT_FOUND",
		Message: "transaction not found",
		Status:  http.StatusNotFound,
	}
	ErrInvalidTransition = &AppError{
		Code:    "TXN_INVALID_STATE",
		Message: "status transition not allowed",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrUnknownStatus = &AppError{
		Code:    "TXN_UNKNOWN_STATUS",
		Message: "unrecognized transaction status",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrSelfTransfer = &AppError{
		Code:    "TXN_SELF_TRANSFER",
		Message: "cannot transfer to your own wallet",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrRecipientNotFound = &AppError{
		Code:    "TXN_RECIPIENT_NOT_FOUND",
		Message: "recipient wallet not found",
		Status:  http.StatusNotFound,
	}
	ErrAmountInvalid = &AppError{
		Code:    "TXN_AMOUNT_INVALID",
		Message: "amount is out of the accepted range",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrAmountTooSmall = &AppError{
		Code:    "TXN_AMOUNT_TOO_SMALL",
		Message: "amount is below the minimum",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrAmountTooLarge = &AppError{
		Code:    "TXN_AMOUNT_TOO_LARGE",
		Message: "amount is above the maximum",
		Status:  http.StatusUnprocessableEntity,
	}
	ErrDuplicateReference = &AppError{
		Code:    "TXN_DUPLICATE_REFERENCE",
		Message: "reference already used",
		Status:  http.StatusConflict,
	}
	ErrAlreadyProcessed = &AppError{
		Code:    "TXN_ALREADY_PROCESSED",
		Message: "transaction has already been processed",
		Status:  http.StatusConflict,
	}
	ErrWithdrawalNotFound = &AppError{
		Code:    "TXN_WITHDRAWAL_NOT_FOUND",
		Message: "withdrawal not found",
		Status:  http.StatusNotFound,
	}
	ErrOTPNotPending = &AppError{
		Code:    "TXN_OTP_NOT_PENDING",
		Message: "withdrawal is not waiting for an OTP",
		Status:  http.StatusConflict,
	}
)
