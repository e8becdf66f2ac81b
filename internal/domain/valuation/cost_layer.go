package valuation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

// CostLayer records the cost of a receipt tranche. Issues consume layers in
// costing-method order; an exhausted layer is kept for audit rather than
// deleted.
type CostLayer struct {
	shared.TenantAggregateRoot
	VariantID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_cost_layer_variant,priority:1"`
	WarehouseID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_cost_layer_variant,priority:2"`
	MovementID        uuid.UUID       `gorm:"type:uuid;not null;index"` // Receipt movement that created this layer
	QuantityOriginal  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReceivedAt        time.Time       `gorm:"not null;index:idx_cost_layer_variant,priority:3"`
}

// TableName returns the table name for GORM
func (CostLayer) TableName() string {
	return "cost_layers"
}

// NewCostLayer creates a cost layer from a posted receipt
func NewCostLayer(
	tenantID, variantID, warehouseID, movementID uuid.UUID,
	quantity, unitCost decimal.Decimal,
	receivedAt time.Time,
) (*CostLayer, error) {
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	if movementID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MOVEMENT", "Movement ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Layer quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative")
	}

	return &CostLayer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VariantID:           variantID,
		WarehouseID:         warehouseID,
		MovementID:          movementID,
		QuantityOriginal:    quantity,
		QuantityRemaining:   quantity,
		UnitCost:            unitCost,
		ReceivedAt:          receivedAt,
	}, nil
}

// IsExhausted returns true if the layer has no remaining quantity
func (l *CostLayer) IsExhausted() bool {
	return l.QuantityRemaining.LessThanOrEqual(decimal.Zero)
}

// HasRemaining returns true if the layer still holds quantity
func (l *CostLayer) HasRemaining() bool {
	return l.QuantityRemaining.GreaterThan(decimal.Zero)
}

// RemainingValue returns the value of the remaining quantity
func (l *CostLayer) RemainingValue() decimal.Decimal {
	return l.QuantityRemaining.Mul(l.UnitCost)
}

// Consume deducts up to the requested quantity and returns the amount
// actually taken from this layer.
func (l *CostLayer) Consume(quantity decimal.Decimal) decimal.Decimal {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	taken := decimal.Min(quantity, l.QuantityRemaining)
	l.QuantityRemaining = l.QuantityRemaining.Sub(taken)
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return taken
}
