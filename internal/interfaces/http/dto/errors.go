package dto

import (
	"net/http"

	"github.com/erp/poscore/internal/domain/shared"
)

// Transport-only error codes. Everything else comes from shared.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeTimeout         = "REQUEST_TIMEOUT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:          http.StatusBadRequest,
	shared.CodeUnauthorized:    http.StatusUnauthorized,
	shared.CodeForbidden:       http.StatusForbidden,
	shared.CodeNotFound:        http.StatusNotFound,
	shared.CodeVersionNotFound: http.StatusNotFound,

	shared.CodeConcurrencyConflict:        http.StatusConflict,
	shared.CodeVersionConflict:            http.StatusConflict,
	shared.CodeDuplicateInvoiceNumber:     http.StatusConflict,
	shared.CodeDuplicateExternalReference: http.StatusConflict,
	shared.CodeAlreadyExists:              http.StatusConflict,

	shared.CodeInsufficientStock:    http.StatusUnprocessableEntity,
	shared.CodeInvalidState:         http.StatusUnprocessableEntity,
	shared.CodeOverpayment:          http.StatusUnprocessableEntity,
	shared.CodeCreditLimitExceeded:  http.StatusUnprocessableEntity,
	shared.CodeIdempotencyKeyReused: http.StatusUnprocessableEntity,

	shared.CodeInvoiceLocked: http.StatusLocked,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeTimeout:         http.StatusGatewayTimeout,
	shared.CodeInternal:    http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
