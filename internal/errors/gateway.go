package errors

import "net/http"

var (
	ErrGatewayUnavailable = &AppError{
		Code:      "SERVICE_UNAVAILABLE",
		Message:   "payment gateway is unreachable",
		Status:    http.StatusBadGateway,
		Retryable: true,
	}
	ErrGatewayRejected = &AppError{
		Code:    "SERVICE_REJECTED",
		Message: "payment gateway rejected the request",
		Status:  http.StatusBadGateway,
	}
	ErrWebhookMethod = &AppError{
		Code:    "SYSTEM_METHOD_NOT_ALLOWED",
		Message: "webhook only accepts POST",
		Status:  http.StatusMethodNotAllowed,
	}
	ErrCrossVerification = &AppError{
		Code:      "SERVICE_VERIFICATION_FAILED",
		Message:   "could not confirm event with the gateway",
		Status:    http.StatusBadGateway,
		Retryable: true,
	}
)
