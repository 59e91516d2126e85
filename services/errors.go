package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure for the HTTP layer
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindOwnership  ErrorKind = "ownership"
	KindNotFound   ErrorKind = "not_found"
	KindUpstream   ErrorKind = "upstream"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
)

// AppError is the error type returned by every service in this package
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
	// Gateway marks an upstream failure that should surface as 502 rather than 400
	Gateway bool
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Status maps the error kind to an HTTP status code
func (e *AppError) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindOwnership:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		if e.Gateway {
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message}
}

func NewAuthError(message string) *AppError {
	return &AppError{Kind: KindAuth, Code: "UNAUTHORIZED", Message: message}
}

func NewOwnershipError(message string) *AppError {
	return &AppError{Kind: KindOwnership, Code: "FORBIDDEN", Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

// NewUpstreamError wraps a vendor, payment or messaging failure; message is passed through to callers
func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Code: "UPSTREAM_ERROR", Message: message, Err: err}
}

// NewGatewayError is an upstream failure reported as 502
func NewGatewayError(message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Code: "UPSTREAM_ERROR", Message: message, Err: err, Gateway: true}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Code: "CONFLICT", Message: message}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// ErrInsufficientBalance is returned when the wallet cannot cover a purchase hold
var ErrInsufficientBalance = &AppError{Kind: KindValidation, Code: "INSUFFICIENT_BALANCE", Message: "Insufficient wallet balance"}

// AsAppError extracts an *AppError from err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}
