package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

// StockLineQuery identifies a set of stock lines. LocationID and BatchID are
// optional narrowers; nil means "any".
type StockLineQuery struct {
	VariantID   uuid.UUID
	WarehouseID uuid.UUID
	LocationID  *uuid.UUID
	BatchID     *uuid.UUID
}

// StockLineRepository defines the interface for stock line persistence
type StockLineRepository interface {
	// FindByID finds a stock line by its ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*StockLine, error)

	// FindByKey finds the exact line for a (variant, warehouse, location, batch)
	// tuple. Returns shared.ErrNotFound if no line exists.
	FindByKey(ctx context.Context, tenantID uuid.UUID, query StockLineQuery) (*StockLine, error)

	// FindMatching finds all lines matching the query (nil narrowers match any)
	FindMatching(ctx context.Context, tenantID uuid.UUID, query StockLineQuery) ([]StockLine, error)

	// FindPickable finds located lines with positive quantity for a variant in
	// a warehouse, ordered ascending by location then batch then creation time
	// so that allocation is deterministic.
	FindPickable(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]StockLine, error)

	// SumOnHand sums quantity over all lines matching the query
	SumOnHand(ctx context.Context, tenantID uuid.UUID, query StockLineQuery) (decimal.Decimal, error)

	// Save creates or updates a stock line
	Save(ctx context.Context, line *StockLine) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, line *StockLine) error

	// GetOrCreate gets the existing line for the tuple or creates an empty one
	GetOrCreate(ctx context.Context, tenantID uuid.UUID, query StockLineQuery) (*StockLine, error)
}

// MovementRepository defines the interface for movement persistence.
// Movements are append-only; there is no update or delete.
type MovementRepository interface {
	// FindByID finds a movement by its ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Movement, error)

	// FindByReference finds movements posted for a source document
	FindByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) ([]Movement, error)

	// FindByVariant finds movements for a variant in a warehouse
	FindByVariant(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID, filter shared.Filter) ([]Movement, error)

	// FindByDateRange finds movements within a posting time range
	FindByDateRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time, filter shared.Filter) ([]Movement, error)

	// Create appends a new movement record
	Create(ctx context.Context, movement *Movement) error

	// SumSignedQuantity sums signed quantities for a variant in a warehouse;
	// used by reconciliation to cross-check line quantities.
	SumSignedQuantity(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error)
}
