package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for reservation persistence
type Repository interface {
	// FindByID finds a reservation by its ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Reservation, error)

	// FindByReference finds all reservations created for a source document
	FindByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) ([]Reservation, error)

	// FindHeld finds pending and active reservations for a variant in a warehouse
	FindHeld(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]Reservation, error)

	// FindExpired finds held reservations whose expiry is at or before the cutoff
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error)

	// SumHeldQuantity sums the quantity held against ATP for a variant in a warehouse
	SumHeldQuantity(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error)

	// Save creates or updates a reservation
	Save(ctx context.Context, reservation *Reservation) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, reservation *Reservation) error
}
