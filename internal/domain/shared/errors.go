package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrInsufficientLayers  = NewDomainError("INSUFFICIENT_LAYERS", "Insufficient cost layers to cover the requested quantity")
	ErrNoStockAvailable    = NewDomainError("NO_STOCK_AVAILABLE", "No stock available to allocate")
	ErrLockTimeout         = NewDomainError("LOCK_TIMEOUT", "Timed out waiting for a stock lock")
	ErrConsistency         = NewDomainError("CONSISTENCY_ERROR", "Ledger and valuation totals diverge")
)
