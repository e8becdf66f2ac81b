package reservation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

// Status represents the lifecycle state of a reservation
type Status string

const (
	// StatusPending means the reservation is created but not yet holding stock
	StatusPending Status = "PENDING"
	// StatusActive means the reservation holds stock against ATP
	StatusActive Status = "ACTIVE"
	// StatusFulfilled means the reserved stock was issued
	StatusFulfilled Status = "FULFILLED"
	// StatusReleased means the reservation was cancelled and stock returned to ATP
	StatusReleased Status = "RELEASED"
	// StatusExpired means the reservation passed its expiry and was swept
	StatusExpired Status = "EXPIRED"
)

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusFulfilled, StatusReleased, StatusExpired:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are allowed
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFulfilled, StatusReleased, StatusExpired:
		return true
	}
	return false
}

// Priority orders competing reservations when stock is scarce
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// String returns the string representation of Priority
func (p Priority) String() string {
	return string(p)
}

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank returns a sortable weight, higher wins
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Reservation holds a quantity of a variant against available-to-promise.
// Active reservations reduce ATP without moving physical stock; the ledger
// only changes when the reservation is fulfilled.
type Reservation struct {
	shared.TenantAggregateRoot
	VariantID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_reservation_variant,priority:1"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;index:idx_reservation_variant,priority:2"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status      Status          `gorm:"type:varchar(20);not null;index"`
	Priority    Priority        `gorm:"type:varchar(20);not null;default:'MEDIUM'"`
	ReferenceID string          `gorm:"type:varchar(100);not null;index:idx_reservation_reference"`
	ExpiresAt   *time.Time      `gorm:"index"`
	ReleasedAt  *time.Time
	FulfilledAt *time.Time
}

// TableName returns the table name for GORM
func (Reservation) TableName() string {
	return "reservations"
}

// NewReservation creates a pending reservation
func NewReservation(
	tenantID, variantID, warehouseID uuid.UUID,
	quantity decimal.Decimal,
	referenceID string,
) (*Reservation, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Reserved quantity must be positive")
	}
	if referenceID == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Reference ID cannot be empty")
	}

	return &Reservation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VariantID:           variantID,
		WarehouseID:         warehouseID,
		Quantity:            quantity,
		Status:              StatusPending,
		Priority:            PriorityMedium,
		ReferenceID:         referenceID,
	}, nil
}

// WithPriority sets the reservation priority
func (r *Reservation) WithPriority(priority Priority) *Reservation {
	if priority.IsValid() {
		r.Priority = priority
	}
	return r
}

// WithExpiry sets the expiry deadline
func (r *Reservation) WithExpiry(expiresAt time.Time) *Reservation {
	r.ExpiresAt = &expiresAt
	return r
}

// IsActive returns true if the reservation currently holds stock
func (r *Reservation) IsActive() bool {
	return r.Status == StatusActive
}

// HoldsStock returns true if the reservation reduces ATP
func (r *Reservation) HoldsStock() bool {
	return r.Status == StatusPending || r.Status == StatusActive
}

// IsExpiredAt returns true if the reservation should be swept at the given time
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return r.HoldsStock() && r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Activate transitions the reservation from pending to active
func (r *Reservation) Activate() error {
	if r.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending reservations can be activated")
	}
	r.Status = StatusActive
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
	return nil
}

// Fulfill marks the reservation as issued. Only active reservations can be
// fulfilled; pending ones must be activated first.
func (r *Reservation) Fulfill() error {
	if r.Status != StatusActive {
		return shared.NewDomainError("INVALID_STATE", "Only active reservations can be fulfilled")
	}
	now := time.Now()
	r.Status = StatusFulfilled
	r.FulfilledAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	return nil
}

// Release cancels the reservation and returns its quantity to ATP. Releasing
// a reservation that is already finalized, whatever the terminal state, is a
// no-op so that retries are safe.
func (r *Reservation) Release() error {
	if r.Status.IsTerminal() {
		return nil
	}
	now := time.Now()
	r.Status = StatusReleased
	r.ReleasedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	return nil
}

// Expire marks an overdue reservation as expired
func (r *Reservation) Expire() error {
	if !r.HoldsStock() {
		return shared.NewDomainError("INVALID_STATE", "Only held reservations can expire")
	}
	r.Status = StatusExpired
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
	return nil
}
