package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes used across the closure workflow and the admin API.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
	CodeSelectionFailed  = "SELECTION_FAILED"
	CodeLeaseConflict    = "LEASE_CONFLICT"
	CodePersistFailed    = "PERSIST_FAILED"
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

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

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewSelectionFailure wraps a failed candidate query. It is the only error
// that aborts a closure run.
func NewSelectionFailure(err error) error {
	return &DomainError{
		Code:       CodeSelectionFailed,
		Message:    "select inactive tickets",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewLeaseConflict reports that another writer holds the ticket.
func NewLeaseConflict(ticketID string, err error) error {
	return &DomainError{
		Code:       CodeLeaseConflict,
		Message:    "ticket is leased by another writer",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"ticket_id": ticketID},
		Err:        err,
	}
}

// NewPersistFailure reports that the closed state could not be stored.
func NewPersistFailure(ticketID string, err error) error {
	return &DomainError{
		Code:       CodePersistFailed,
		Message:    "persist ticket",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"ticket_id": ticketID},
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
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the domain code carried by err, or "" when err is nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}
