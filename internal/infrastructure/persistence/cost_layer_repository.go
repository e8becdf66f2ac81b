package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/valuation"
)

// GormCostLayerRepository implements valuation.CostLayerRepository using GORM
type GormCostLayerRepository struct {
	db *gorm.DB
}

// NewGormCostLayerRepository creates a new GormCostLayerRepository
func NewGormCostLayerRepository(db *gorm.DB) *GormCostLayerRepository {
	return &GormCostLayerRepository{db: db}
}

// FindByID finds a cost layer by its ID within a tenant
func (r *GormCostLayerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*valuation.CostLayer, error) {
	var layer valuation.CostLayer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&layer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &layer, nil
}

// FindOpenLayers finds layers with remaining quantity, oldest receipt first.
// The ordering is the FIFO walk order; LIFO strategies re-sort in memory.
func (r *GormCostLayerRepository) FindOpenLayers(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]valuation.CostLayer, error) {
	var layers []valuation.CostLayer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID).
		Where("quantity_remaining > 0").
		Order("received_at ASC, created_at ASC").
		Find(&layers).Error; err != nil {
		return nil, err
	}
	return layers, nil
}

// FindAllLayers finds all layers for a variant including exhausted ones
func (r *GormCostLayerRepository) FindAllLayers(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]valuation.CostLayer, error) {
	var layers []valuation.CostLayer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID).
		Order("received_at ASC, created_at ASC").
		Find(&layers).Error; err != nil {
		return nil, err
	}
	return layers, nil
}

// SumRemainingQuantity sums remaining quantity over open layers
func (r *GormCostLayerRepository) SumRemainingQuantity(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&valuation.CostLayer{}).
		Select("COALESCE(SUM(quantity_remaining), 0) as total").
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumRemainingValue sums quantity_remaining * unit_cost over open layers
func (r *GormCostLayerRepository) SumRemainingValue(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&valuation.CostLayer{}).
		Select("COALESCE(SUM(quantity_remaining * unit_cost), 0) as total").
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Save creates or updates a cost layer
func (r *GormCostLayerRepository) Save(ctx context.Context, layer *valuation.CostLayer) error {
	return r.db.WithContext(ctx).Save(layer).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormCostLayerRepository) SaveWithLock(ctx context.Context, layer *valuation.CostLayer) error {
	result := r.db.WithContext(ctx).
		Model(layer).
		Where("id = ? AND version = ?", layer.ID, layer.Version-1).
		Updates(map[string]interface{}{
			"quantity_remaining": layer.QuantityRemaining,
			"version":            layer.Version,
			"updated_at":         layer.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Cost layer was modified by another transaction")
	}
	return nil
}

// SaveAll persists a set of mutated layers in one call
func (r *GormCostLayerRepository) SaveAll(ctx context.Context, layers []*valuation.CostLayer) error {
	if len(layers) == 0 {
		return nil
	}
	for _, layer := range layers {
		if err := r.SaveWithLock(ctx, layer); err != nil {
			return err
		}
	}
	return nil
}

// Ensure GormCostLayerRepository implements CostLayerRepository
var _ valuation.CostLayerRepository = (*GormCostLayerRepository)(nil)
