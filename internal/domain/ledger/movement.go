package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

// MovementType represents the type of a stock movement
type MovementType string

const (
	// MovementTypeReceipt represents stock entering the warehouse
	MovementTypeReceipt MovementType = "RECEIPT"
	// MovementTypeIssue represents stock leaving the warehouse
	MovementTypeIssue MovementType = "ISSUE"
	// MovementTypeTransfer represents stock moving between storage locations
	MovementTypeTransfer MovementType = "TRANSFER"
	// MovementTypeAdjustment represents a stock count correction
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeReceipt, MovementTypeIssue, MovementTypeTransfer, MovementTypeAdjustment:
		return true
	}
	return false
}

// RequiresSource returns true if the movement drains a source line
func (t MovementType) RequiresSource() bool {
	return t == MovementTypeIssue || t == MovementTypeTransfer
}

// Movement is an immutable record of a stock quantity change. Once persisted it
// is never modified; corrections are posted as new movements.
type Movement struct {
	shared.BaseEntity
	TenantID       uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_tenant_time,priority:1"`
	VariantID      uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_variant"`
	WarehouseID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_warehouse"`
	SourceLocation *uuid.UUID       `gorm:"type:uuid"`
	DestLocation   *uuid.UUID       `gorm:"type:uuid"`
	BatchID        *uuid.UUID       `gorm:"type:uuid;index"`
	Type           MovementType     `gorm:"type:varchar(20);not null;index:idx_movement_type"`
	Quantity       decimal.Decimal  `gorm:"type:decimal(18,4);not null"` // Always positive, direction given by Type
	UnitCost       *decimal.Decimal `gorm:"type:decimal(18,4)"`          // Set on receipts; derived from layers on issues
	TotalCost      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	ReferenceID    string           `gorm:"type:varchar(100);not null;index:idx_movement_reference"`
	Reason         string           `gorm:"type:varchar(255)"`
	PostedAt       time.Time        `gorm:"not null;index:idx_movement_tenant_time,priority:2"`
}

// TableName returns the table name for GORM
func (Movement) TableName() string {
	return "movements"
}

// NewMovement creates a new movement record
func NewMovement(
	tenantID, variantID, warehouseID uuid.UUID,
	movementType MovementType,
	quantity decimal.Decimal,
	referenceID string,
) (*Movement, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	if !movementType.IsValid() {
		return nil, shared.NewDomainError("INVALID_MOVEMENT_TYPE", "Invalid movement type")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if referenceID == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Reference ID cannot be empty")
	}

	return &Movement{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		VariantID:   variantID,
		WarehouseID: warehouseID,
		Type:        movementType,
		Quantity:    quantity,
		TotalCost:   decimal.Zero,
		ReferenceID: referenceID,
		PostedAt:    time.Now(),
	}, nil
}

// WithSourceLocation sets the source location for the movement
func (m *Movement) WithSourceLocation(locationID uuid.UUID) *Movement {
	m.SourceLocation = &locationID
	return m
}

// WithDestLocation sets the destination location for the movement
func (m *Movement) WithDestLocation(locationID uuid.UUID) *Movement {
	m.DestLocation = &locationID
	return m
}

// WithBatchID sets the batch for the movement
func (m *Movement) WithBatchID(batchID uuid.UUID) *Movement {
	m.BatchID = &batchID
	return m
}

// WithUnitCost sets the per-unit cost and recomputes the total cost
func (m *Movement) WithUnitCost(unitCost decimal.Decimal) *Movement {
	m.UnitCost = &unitCost
	m.TotalCost = m.Quantity.Mul(unitCost)
	return m
}

// WithTotalCost sets the total cost directly (issues costed from layers)
func (m *Movement) WithTotalCost(totalCost decimal.Decimal) *Movement {
	m.TotalCost = totalCost
	return m
}

// WithReason sets the reason for the movement
func (m *Movement) WithReason(reason string) *Movement {
	m.Reason = reason
	return m
}

// WithPostedAt sets the posting time
func (m *Movement) WithPostedAt(t time.Time) *Movement {
	m.PostedAt = t
	return m
}

// SignedQuantity returns the quantity with sign: positive for receipts,
// negative for issues. Adjustments carry their direction through the location
// they touched: stock counted into a location sets DestLocation, stock counted
// out sets SourceLocation. Transfers are quantity-neutral at warehouse scope
// and return zero.
func (m *Movement) SignedQuantity() decimal.Decimal {
	switch m.Type {
	case MovementTypeReceipt:
		return m.Quantity
	case MovementTypeIssue:
		return m.Quantity.Neg()
	case MovementTypeAdjustment:
		if m.SourceLocation != nil {
			return m.Quantity.Neg()
		}
		return m.Quantity
	default:
		return decimal.Zero
	}
}

// IsInbound returns true if this movement increases warehouse on-hand
func (m *Movement) IsInbound() bool {
	return m.Type == MovementTypeReceipt
}

// IsOutbound returns true if this movement decreases warehouse on-hand
func (m *Movement) IsOutbound() bool {
	return m.Type == MovementTypeIssue
}
