package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context. The HTTP layer maps them to
// status codes; storage-level failures are translated into these codes by the
// persistence layer before they reach a service.
const (
	CodeValidation                 = "VALIDATION_ERROR"
	CodeNotFound                   = "NOT_FOUND"
	CodeVersionNotFound            = "VERSION_NOT_FOUND"
	CodeAlreadyExists              = "ALREADY_EXISTS"
	CodeConcurrencyConflict        = "CONCURRENCY_CONFLICT"
	CodeVersionConflict            = "VERSION_CONFLICT"
	CodeInsufficientStock          = "INSUFFICIENT_STOCK"
	CodeInvoiceLocked              = "INVOICE_LOCKED"
	CodeDuplicateInvoiceNumber     = "DUPLICATE_INVOICE_NUMBER"
	CodeDuplicateExternalReference = "DUPLICATE_EXTERNAL_REFERENCE"
	CodeForbidden                  = "FORBIDDEN"
	CodeUnauthorized               = "UNAUTHORIZED"
	CodeInvalidState               = "INVALID_STATE"
	CodeOverpayment                = "OVERPAYMENT"
	CodeCreditLimitExceeded        = "CREDIT_LIMIT_EXCEEDED"
	CodeIdempotencyKeyReused       = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal                   = "INTERNAL_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on code so that errors.Is(err, ErrNotFound) works for any
// NOT_FOUND error regardless of its message or details.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of the error with one more detail attached
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Err: e.Err}
}

// WithCause returns a copy of the error wrapping cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: e.Details, Err: cause}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a VALIDATION_ERROR with the given message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewNotFoundError creates a NOT_FOUND error naming the missing entity
func NewNotFoundError(entity string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetail("entity", entity).
		WithDetail("id", fmt.Sprint(id))
}

// NewConcurrencyConflict reports a stale row version. current is the version
// the caller should reload; pass a negative value when it is unknown.
func NewConcurrencyConflict(entity string, current int64) *DomainError {
	err := NewDomainError(CodeConcurrencyConflict,
		fmt.Sprintf("%s was modified by another process, reload and retry", entity)).
		WithDetail("entity", entity)
	if current >= 0 {
		err = err.WithDetail("current_row_version", current)
	}
	return err
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrForbidden           = NewDomainError(CodeForbidden, "Actor is not allowed to perform this action")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInvoiceLocked       = NewDomainError(CodeInvoiceLocked, "Invoice is locked for editing")
	ErrVersionNotFound     = NewDomainError(CodeVersionNotFound, "Invoice version not found")
	ErrVersionConflict     = NewDomainError(CodeVersionConflict, "Invoice version already exists")
)

// IsCode reports whether err carries a DomainError with the given code
func IsCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
