package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error type every handler and service returns. Code
// is the stable machine-readable identifier; Status is the HTTP status
// the API layer renders; Err carries the underlying cause for logs and
// is never serialized to clients.
type AppError struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Err       error
	Retryable bool
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches two AppErrors by Code so sentinel comparisons survive
// WithDetails / WithErr copies.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a copy carrying per-request details. The
// receiver is left untouched so shared sentinels stay immutable.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	c := *e
	c.Details = details
	return &c
}

// WithErr returns a copy wrapping the underlying cause.
func (e *AppError) WithErr(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// WithMessage returns a copy with a request-specific message.
func (e *AppError) WithMessage(format string, args ...interface{}) *AppError {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// New builds an AppError. Most callers should prefer the package
// sentinels and derive from them.
func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// Internal wraps an unexpected failure. The client sees a generic
// message; the cause stays available for logging.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "SYSTEM_INTERNAL",
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// From coerces any error into an AppError, defaulting to Internal for
// errors that did not originate in this package.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// HTTPStatus reports the HTTP status an error should render with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Is re-exports errors.Is so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }
