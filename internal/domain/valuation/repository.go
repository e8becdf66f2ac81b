package valuation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostLayerRepository defines the interface for cost layer persistence
type CostLayerRepository interface {
	// FindByID finds a cost layer by its ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*CostLayer, error)

	// FindOpenLayers finds layers with remaining quantity for a variant in a
	// warehouse, ordered ascending by received time then creation time.
	FindOpenLayers(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]CostLayer, error)

	// FindAllLayers finds all layers for a variant including exhausted ones
	FindAllLayers(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]CostLayer, error)

	// SumRemainingQuantity sums remaining quantity over open layers
	SumRemainingQuantity(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error)

	// SumRemainingValue sums quantity_remaining * unit_cost over open layers
	SumRemainingValue(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error)

	// Save creates or updates a cost layer
	Save(ctx context.Context, layer *CostLayer) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, layer *CostLayer) error

	// SaveAll persists a set of mutated layers in one call
	SaveAll(ctx context.Context, layers []*CostLayer) error
}
