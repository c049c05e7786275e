package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers. Retryable conditions carry the Retryable
// flag so queue-level redelivery can distinguish them from business errors.
const (
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeDuplicateIdentity      = "DUPLICATE_IDENTITY"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeActivationTokenInvalid = "ACTIVATION_TOKEN_INVALID"
	CodeActivationTokenExpired = "ACTIVATION_TOKEN_EXPIRED"
	CodeUnsupportedAlgorithm   = "UNSUPPORTED_ALGORITHM"
	CodeStorageUnavailable     = "STORAGE_UNAVAILABLE"
	CodeAuthorizationDenied    = "AUTHORIZATION_DENIED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeNotFound               = "NOT_FOUND"
	CodeRateLimited            = "RATE_LIMITED"
	CodeInternalError          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Retryable  bool
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewDuplicateIdentity(issuerID, externalUserID string) error {
	return NewDomainError(CodeDuplicateIdentity, "identity already exists for external user", http.StatusConflict, map[string]any{
		"issuer_id":        issuerID,
		"external_user_id": externalUserID,
	})
}

func NewInvalidStateTransition(current, requested string) error {
	return NewDomainError(CodeInvalidStateTransition, "current state does not permit the requested transition", http.StatusConflict, map[string]any{
		"current":   current,
		"requested": requested,
	})
}

func NewActivationTokenInvalid() error {
	return NewDomainError(CodeActivationTokenInvalid, "activation token does not match", http.StatusUnprocessableEntity, nil)
}

func NewActivationTokenExpired() error {
	return NewDomainError(CodeActivationTokenExpired, "activation token has expired", http.StatusUnprocessableEntity, nil)
}

func NewUnsupportedAlgorithm(algorithm string) error {
	return NewDomainError(CodeUnsupportedAlgorithm, "key algorithm not supported", http.StatusUnprocessableEntity, map[string]any{
		"algorithm": algorithm,
	})
}

func NewStorageUnavailable(err error) error {
	return &DomainError{
		Code:       CodeStorageUnavailable,
		Message:    "backing store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Err:        err,
	}
}

func NewAuthorizationDenied(message string) error {
	return NewDomainError(CodeAuthorizationDenied, message, http.StatusForbidden, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewNotFound(resource string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

func NewRateLimited(issuerID string) error {
	return &DomainError{
		Code:       CodeRateLimited,
		Message:    "issuance rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
		Details:    map[string]any{"issuer_id": issuerID},
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource").(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsRetryable reports whether the error should be retried by the caller or
// redelivered by the queue layer.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	return false
}
