package dto

import "net/http"

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "INVALID_JSON"
)

// errorCodeHTTPStatus maps domain error codes to HTTP status codes. Codes
// missing from the map fall through the prefix rules in GetHTTPStatus.
var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	// Resource errors
	"NOT_FOUND":      http.StatusNotFound,
	"ALREADY_EXISTS": http.StatusConflict,

	// Concurrency and locking
	"CONCURRENCY_CONFLICT":   http.StatusConflict,
	"OPTIMISTIC_LOCK_FAILED": http.StatusConflict,
	"LOCK_TIMEOUT":           http.StatusServiceUnavailable,

	// Business rules -> 422 Unprocessable Entity
	"INVALID_STATE":       http.StatusUnprocessableEntity,
	"INSUFFICIENT_STOCK":  http.StatusUnprocessableEntity,
	"INSUFFICIENT_LAYERS": http.StatusUnprocessableEntity,
	"NO_STOCK_AVAILABLE":  http.StatusUnprocessableEntity,
	"NO_CHANGE":           http.StatusUnprocessableEntity,

	// Reconciliation failures expose a server-side data problem
	"CONSISTENCY_ERROR": http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// INVALID_* codes not explicitly mapped are treated as bad input.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	if len(code) > 8 && code[:8] == "INVALID_" {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
