package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeStockLine = "StockLine"

// Event type constants
const (
	EventTypeStockReceived    = "StockReceived"
	EventTypeStockIssued      = "StockIssued"
	EventTypeStockTransferred = "StockTransferred"
	EventTypeStockAdjusted    = "StockAdjusted"
)

// MovementPostedEvent carries the shared fields of all ledger events
type MovementPostedEvent struct {
	shared.BaseDomainEvent
	MovementID  uuid.UUID       `json:"movement_id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	ReferenceID string          `json:"reference_id"`
}

func newMovementPostedEvent(eventType string, line *StockLine, movement *Movement) MovementPostedEvent {
	return MovementPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeStockLine, line.ID, line.TenantID),
		MovementID:      movement.ID,
		VariantID:       movement.VariantID,
		WarehouseID:     movement.WarehouseID,
		Quantity:        movement.Quantity,
		ReferenceID:     movement.ReferenceID,
	}
}

// StockReceivedEvent is raised when a RECEIPT movement posts
type StockReceivedEvent struct {
	MovementPostedEvent
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// NewStockReceivedEvent creates a new StockReceivedEvent
func NewStockReceivedEvent(line *StockLine, movement *Movement) *StockReceivedEvent {
	unitCost := decimal.Zero
	if movement.UnitCost != nil {
		unitCost = *movement.UnitCost
	}
	return &StockReceivedEvent{
		MovementPostedEvent: newMovementPostedEvent(EventTypeStockReceived, line, movement),
		UnitCost:            unitCost,
	}
}

// EventType returns the event type name
func (e *StockReceivedEvent) EventType() string {
	return EventTypeStockReceived
}

// StockIssuedEvent is raised when an ISSUE movement posts
type StockIssuedEvent struct {
	MovementPostedEvent
	TotalCost decimal.Decimal `json:"total_cost"`
}

// NewStockIssuedEvent creates a new StockIssuedEvent
func NewStockIssuedEvent(line *StockLine, movement *Movement) *StockIssuedEvent {
	return &StockIssuedEvent{
		MovementPostedEvent: newMovementPostedEvent(EventTypeStockIssued, line, movement),
		TotalCost:           movement.TotalCost,
	}
}

// EventType returns the event type name
func (e *StockIssuedEvent) EventType() string {
	return EventTypeStockIssued
}

// StockTransferredEvent is raised when a TRANSFER movement posts
type StockTransferredEvent struct {
	MovementPostedEvent
	SourceLocation *uuid.UUID `json:"source_location,omitempty"`
	DestLocation   *uuid.UUID `json:"dest_location,omitempty"`
}

// NewStockTransferredEvent creates a new StockTransferredEvent
func NewStockTransferredEvent(line *StockLine, movement *Movement) *StockTransferredEvent {
	return &StockTransferredEvent{
		MovementPostedEvent: newMovementPostedEvent(EventTypeStockTransferred, line, movement),
		SourceLocation:      movement.SourceLocation,
		DestLocation:        movement.DestLocation,
	}
}

// EventType returns the event type name
func (e *StockTransferredEvent) EventType() string {
	return EventTypeStockTransferred
}

// StockAdjustedEvent is raised when an ADJUSTMENT movement posts
type StockAdjustedEvent struct {
	MovementPostedEvent
	Difference decimal.Decimal `json:"difference"`
	Reason     string          `json:"reason"`
}

// NewStockAdjustedEvent creates a new StockAdjustedEvent
func NewStockAdjustedEvent(line *StockLine, movement *Movement, difference decimal.Decimal) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		MovementPostedEvent: newMovementPostedEvent(EventTypeStockAdjusted, line, movement),
		Difference:          difference,
		Reason:              movement.Reason,
	}
}

// EventType returns the event type name
func (e *StockAdjustedEvent) EventType() string {
	return EventTypeStockAdjusted
}
