package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/picking"
	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/valuation"
)

// PostMovementCommand carries everything needed to post one movement.
// For ADJUSTMENT the Quantity field is the counted actual on the line, not a
// delta; the service derives the delta and its direction.
type PostMovementCommand struct {
	TenantID       uuid.UUID
	VariantID      uuid.UUID
	WarehouseID    uuid.UUID
	Type           ledger.MovementType
	Quantity       decimal.Decimal
	UnitCost       *decimal.Decimal
	SourceLocation *uuid.UUID
	DestLocation   *uuid.UUID
	BatchID        *uuid.UUID
	ReferenceID    string
	Reason         string
	CostingMethod  valuation.CostingMethod // empty uses the service default
	ReceivedAt     *time.Time              // receipts only; nil uses the posting time
}

// MovementResult is the outcome of posting a movement
type MovementResult struct {
	Movement    *ledger.Movement
	OnHand      decimal.Decimal
	Consumption *valuation.ConsumptionResult // set for outbound valuation changes
}

// OnHandQuery narrows an on-hand or valuation read. Nil narrowers match any.
type OnHandQuery struct {
	VariantID   uuid.UUID
	WarehouseID uuid.UUID
	LocationID  *uuid.UUID
	BatchID     *uuid.UUID
}

// StockValue reports the valued quantity for a variant in a warehouse
type StockValue struct {
	Quantity                decimal.Decimal
	Value                   decimal.Decimal
	WeightedAverageUnitCost decimal.Decimal
}

// ReconciliationReport cross-checks the three quantity views of one variant
type ReconciliationReport struct {
	VariantID     uuid.UUID
	WarehouseID   uuid.UUID
	LineQuantity  decimal.Decimal
	MovementNet   decimal.Decimal
	LayerQuantity decimal.Decimal
	Consistent    bool
	CheckedAt     time.Time
}

// ReserveCommand creates a hold against available-to-promise
type ReserveCommand struct {
	TenantID    uuid.UUID
	VariantID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    decimal.Decimal
	ReferenceID string
	Priority    reservation.Priority // empty defaults to MEDIUM
	TTL         time.Duration        // zero falls back to the service default TTL
}

// ATPResult reports availability for a variant in a warehouse
type ATPResult struct {
	OnHand             decimal.Decimal
	Reserved           decimal.Decimal
	AvailableToPromise decimal.Decimal
}

// DemandLine is one variant demand on a picking list
type DemandLine struct {
	VariantID    uuid.UUID
	Quantity     decimal.Decimal
	LineRequests []picking.LineRequest // used in EXPLICIT mode
}

// CreatePickingListCommand allocates stock for an outbound document
type CreatePickingListCommand struct {
	TenantID    uuid.UUID
	WarehouseID uuid.UUID
	ReferenceID string
	Mode        picking.AllocationMode // empty defaults to AUTO_REMAINING
	Demands     []DemandLine
}

// DemandShortfall reports the unallocated remainder of one demand
type DemandShortfall struct {
	VariantID uuid.UUID
	Quantity  decimal.Decimal
}

// PickingListResult is the outcome of creating a picking list
type PickingListResult struct {
	List           *picking.PickingList
	Shortfalls     []DemandShortfall
	FullyAllocated bool
}

// UpdateTaskCommand records the picked quantity on one task
type UpdateTaskCommand struct {
	TenantID       uuid.UUID
	TaskID         uuid.UUID
	PickedQuantity decimal.Decimal
}

// CompletePickingListCommand finalizes a list and issues the picked stock
type CompletePickingListCommand struct {
	TenantID      uuid.UUID
	ListID        uuid.UUID
	CostingMethod valuation.CostingMethod // empty uses the service default
}
