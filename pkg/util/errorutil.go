package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the service. Handlers map them 1:1 to HTTP
// responses; services select retry behavior from them.
const (
	CodeValidation    = "VALIDATION_FAILED"
	CodePermission    = "PERMISSION_DENIED"
	CodeTransition    = "INVALID_TRANSITION"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT_VERSION_MISMATCH"
	CodeStore         = "STORE_UNAVAILABLE"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInternalError = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
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

// NewValidationError reports malformed caller input. Never retried.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewPermissionDenied reports a role/relationship check failure. Never retried.
func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermission, message, http.StatusForbidden, nil)
}

// NewInvalidTransition reports a status change outside the transition table.
func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeTransition,
		fmt.Sprintf("transition %s -> %s not allowed", from, to),
		http.StatusUnprocessableEntity,
		map[string]any{"from": from, "to": to})
}

// NewNotFound reports a missing resource.
func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewVersionConflict reports an optimistic-concurrency loss. The ticket
// service retries these internally before surfacing one.
func NewVersionConflict(ticketID string, expected int64) error {
	return NewDomainError(CodeConflict, "ticket version conflict", http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "expected_version": expected})
}

// NewStoreUnavailable wraps a transient persistence failure. Retried with
// backoff; never conflated with NOT_FOUND.
func NewStoreUnavailable(err error) error {
	return &DomainError{
		Code:       CodeStore,
		Message:    "persistence unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
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
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// IsConflict reports whether err is an optimistic-concurrency loss.
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsStoreUnavailable reports whether err is a transient store failure.
func IsStoreUnavailable(err error) bool { return hasCode(err, CodeStore) }

// IsNotFound reports whether err is a missing-resource error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsPermissionDenied reports whether err is an authorization denial.
func IsPermissionDenied(err error) bool { return hasCode(err, CodePermission) }

// IsInvalidTransition reports whether err is a rejected status change.
func IsInvalidTransition(err error) bool { return hasCode(err, CodeTransition) }

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }
