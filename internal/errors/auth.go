package errors

import "net/http"

var (
	ErrInvalidCredentials = &AppError{
		Code:    "AUTH_INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
	}
	ErrUnauthorized = &AppError{
		Code:    "AUTH_UNAUTHORIZED",
		Message: "authentication required",
		Status:  http.StatusUnauthorized,
	}
	ErrTokenExpired = &AppError{
		Code:    "AUTH_TOKEN_EXPIRED",
		Message: "token has expired",
		Status:  http.StatusUnauthorized,
	}
	ErrInvalidToken = &AppError{
		Code:    "AUTH_INVALID_TOKEN",
		Message: "invalid or revoked token",
		Status:  http.StatusUnauthorized,
	}
	ErrInvalidSignature = &AppError{
		Code:    "AUTH_INVALID_SIGNATURE",
		Message: "signature verification failed",
		Status:  http.StatusUnauthorized,
	}
	ErrAccountLocked = &AppError{
		Code:    "AUTH_ACCOUNT_LOCKED",
		Message: "account temporarily locked after failed logins",
		Status:  http.StatusForbidden,
	}
	ErrPermissionDenied = &AppError{
		Code:    "AUTH_PERMISSION_DENIED",
		Message: "insufficient permissions",
		Status:  http.StatusForbidden,
	}
	ErrEmailTaken = &AppError{
		Code:    "AUTH_EMAIL_TAKEN",
		Message: "email is already registered",
		Status:  http.StatusConflict,
	}
	ErrPhoneTaken = &AppError{
		Code:    "AUTH_PHONE_TAKEN",
		Message: "phone number is already registered",
		Status:  http.StatusConflict,
	}
	ErrUserNotFound = &AppError{
		Code:    "AUTH_USER_NOT_FOUND",
		Message: "user not found",
		Status:  http.StatusNotFound,
	}
	ErrKYCRequired = &AppError{
		Code:    "KYC_REQUIRED",
		Message: "identity verification required for this operation",
		Status:  http.StatusForbidden,
	}
	ErrKYCPending = &AppError{
		Code:    "KYC_PENDING",
		Message: "identity verification is still under review",
		Status:  http.StatusForbidden,
	}
	ErrKYCRejected = &AppError{
		Code:    "KYC_REJECTED",
		Message: "identity verification was rejected",
		Status:  http.StatusForbidden,
	}
	ErrKYCAlreadySubmitted = &AppError{
		Code:    "KYC_ALREADY_SUBMITTED",
		Message: "a verification request is already pending",
		Status:  http.StatusConflict,
	}
	ErrKYCAlreadyVerified = &AppError{
		Code:    "KYC_ALREADY_VERIFIED",
		Message: "identity is already verified",
		Status:  http.StatusConflict,
	}
)
