package reservation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

const (
	// AggregateTypeReservation is the aggregate type for reservation events
	AggregateTypeReservation = "Reservation"

	EventTypeReservationCreated   = "reservation.created"
	EventTypeReservationActivated = "reservation.activated"
	EventTypeReservationFulfilled = "reservation.fulfilled"
	EventTypeReservationReleased  = "reservation.released"
	EventTypeReservationExpired   = "reservation.expired"
)

// ReservationEvent carries the fields shared by all reservation events
type ReservationEvent struct {
	shared.BaseDomainEvent
	VariantID   uuid.UUID       `json:"variant_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	ReferenceID string          `json:"reference_id"`
}

func newReservationEvent(eventType string, r *Reservation) ReservationEvent {
	return ReservationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeReservation, r.ID, r.TenantID),
		VariantID:       r.VariantID,
		WarehouseID:     r.WarehouseID,
		Quantity:        r.Quantity,
		ReferenceID:     r.ReferenceID,
	}
}

// ReservationCreatedEvent is published when a reservation takes hold of ATP
type ReservationCreatedEvent struct {
	ReservationEvent
	Priority Priority `json:"priority"`
}

// NewReservationCreatedEvent creates a new reservation created event
func NewReservationCreatedEvent(r *Reservation) *ReservationCreatedEvent {
	return &ReservationCreatedEvent{
		ReservationEvent: newReservationEvent(EventTypeReservationCreated, r),
		Priority:         r.Priority,
	}
}

// ReservationFulfilledEvent is published when reserved stock is issued
type ReservationFulfilledEvent struct {
	ReservationEvent
}

// NewReservationFulfilledEvent creates a new reservation fulfilled event
func NewReservationFulfilledEvent(r *Reservation) *ReservationFulfilledEvent {
	return &ReservationFulfilledEvent{
		ReservationEvent: newReservationEvent(EventTypeReservationFulfilled, r),
	}
}

// ReservationReleasedEvent is published when a reservation is cancelled
type ReservationReleasedEvent struct {
	ReservationEvent
}

// NewReservationReleasedEvent creates a new reservation released event
func NewReservationReleasedEvent(r *Reservation) *ReservationReleasedEvent {
	return &ReservationReleasedEvent{
		ReservationEvent: newReservationEvent(EventTypeReservationReleased, r),
	}
}

// ReservationExpiredEvent is published when the sweep expires a reservation
type ReservationExpiredEvent struct {
	ReservationEvent
}

// NewReservationExpiredEvent creates a new reservation expired event
func NewReservationExpiredEvent(r *Reservation) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		ReservationEvent: newReservationEvent(EventTypeReservationExpired, r),
	}
}
