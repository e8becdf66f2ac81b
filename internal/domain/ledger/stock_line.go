package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

// StockLine holds the authoritative on-hand quantity for a
// (variant, warehouse, location, batch) tuple. It is the aggregate root for
// ledger operations; its quantity is only ever mutated by applying a Movement.
type StockLine struct {
	shared.TenantAggregateRoot
	VariantID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_line_key,priority:2"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_line_key,priority:3"`
	LocationID  *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_stock_line_key,priority:4"`
	BatchID     *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_stock_line_key,priority:5"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockLine) TableName() string {
	return "stock_lines"
}

// NewStockLine creates an empty stock line for the given tuple
func NewStockLine(tenantID, variantID, warehouseID uuid.UUID, locationID, batchID *uuid.UUID) (*StockLine, error) {
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}

	return &StockLine{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VariantID:           variantID,
		WarehouseID:         warehouseID,
		LocationID:          locationID,
		BatchID:             batchID,
		Quantity:            decimal.Zero,
	}, nil
}

// IsLocated returns true if the line is bound to a storage location.
// Un-located stock exists in the ledger but cannot be picked.
func (l *StockLine) IsLocated() bool {
	return l.LocationID != nil
}

// HasStock returns true if the line has a positive quantity
func (l *StockLine) HasStock() bool {
	return l.Quantity.GreaterThan(decimal.Zero)
}

// CanIssue returns true if the line can satisfy the requested quantity
func (l *StockLine) CanIssue(quantity decimal.Decimal) bool {
	return l.Quantity.GreaterThanOrEqual(quantity)
}

// Receive increases the line quantity
func (l *StockLine) Receive(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	l.Quantity = l.Quantity.Add(quantity)
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// Issue decreases the line quantity. The caller must hold the per-key lock so
// that the check and the decrement observe the same quantity.
func (l *StockLine) Issue(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if l.Quantity.LessThan(quantity) {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock on line to issue")
	}
	l.Quantity = l.Quantity.Sub(quantity)
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// AdjustTo sets the line quantity to a counted value and returns the signed
// difference. Used by ADJUSTMENT movements.
func (l *StockLine) AdjustTo(actual decimal.Decimal) (decimal.Decimal, error) {
	if actual.IsNegative() {
		return decimal.Zero, shared.NewDomainError("INVALID_QUANTITY", "Actual quantity cannot be negative")
	}
	difference := actual.Sub(l.Quantity)
	l.Quantity = actual
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return difference, nil
}
