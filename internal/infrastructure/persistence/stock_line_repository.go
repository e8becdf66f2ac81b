package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
)

// GormStockLineRepository implements ledger.StockLineRepository using GORM
type GormStockLineRepository struct {
	db *gorm.DB
}

// NewGormStockLineRepository creates a new GormStockLineRepository
func NewGormStockLineRepository(db *gorm.DB) *GormStockLineRepository {
	return &GormStockLineRepository{db: db}
}

// FindByID finds a stock line by its ID within a tenant
func (r *GormStockLineRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.StockLine, error) {
	var line ledger.StockLine
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// FindByKey finds the exact line for a (variant, warehouse, location, batch) tuple
func (r *GormStockLineRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, query ledger.StockLineQuery) (*ledger.StockLine, error) {
	var line ledger.StockLine
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, query.VariantID, query.WarehouseID)
	q = exactNullable(q, "location_id", query.LocationID)
	q = exactNullable(q, "batch_id", query.BatchID)

	if err := q.First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// FindMatching finds all lines matching the query; nil narrowers match any value
func (r *GormStockLineRepository) FindMatching(ctx context.Context, tenantID uuid.UUID, query ledger.StockLineQuery) ([]ledger.StockLine, error) {
	var lines []ledger.StockLine
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, query.VariantID, query.WarehouseID)
	if query.LocationID != nil {
		q = q.Where("location_id = ?", *query.LocationID)
	}
	if query.BatchID != nil {
		q = q.Where("batch_id = ?", *query.BatchID)
	}

	if err := q.Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// FindPickable finds located lines with stock, ordered for deterministic allocation
func (r *GormStockLineRepository) FindPickable(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]ledger.StockLine, error) {
	var lines []ledger.StockLine
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID).
		Where("location_id IS NOT NULL AND quantity > 0").
		Order("location_id ASC, batch_id ASC NULLS FIRST, created_at ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// SumOnHand sums quantity over all lines matching the query
func (r *GormStockLineRepository) SumOnHand(ctx context.Context, tenantID uuid.UUID, query ledger.StockLineQuery) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	q := r.db.WithContext(ctx).
		Model(&ledger.StockLine{}).
		Select("COALESCE(SUM(quantity), 0) as total").
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, query.VariantID, query.WarehouseID)
	if query.LocationID != nil {
		q = q.Where("location_id = ?", *query.LocationID)
	}
	if query.BatchID != nil {
		q = q.Where("batch_id = ?", *query.BatchID)
	}

	if err := q.Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Save creates or updates a stock line
func (r *GormStockLineRepository) Save(ctx context.Context, line *ledger.StockLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormStockLineRepository) SaveWithLock(ctx context.Context, line *ledger.StockLine) error {
	result := r.db.WithContext(ctx).
		Model(line).
		Where("id = ? AND version = ?", line.ID, line.Version-1).
		Updates(map[string]interface{}{
			"quantity":   line.Quantity,
			"version":    line.Version,
			"updated_at": line.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Stock line was modified by another transaction")
	}
	return nil
}

// GetOrCreate gets the existing line for the tuple or creates an empty one.
// Callers serialize writers per stock key, so find-then-create is race free
// within one deployment; the unique index backs it up across deployments.
func (r *GormStockLineRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID, query ledger.StockLineQuery) (*ledger.StockLine, error) {
	line, err := r.FindByKey(ctx, tenantID, query)
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	line, err = ledger.NewStockLine(tenantID, query.VariantID, query.WarehouseID, query.LocationID, query.BatchID)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(line).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.FindByKey(ctx, tenantID, query)
		}
		return nil, err
	}
	return line, nil
}

// exactNullable matches a nullable column exactly: nil means IS NULL
func exactNullable(q *gorm.DB, column string, value *uuid.UUID) *gorm.DB {
	if value == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *value)
}

// Ensure GormStockLineRepository implements StockLineRepository
var _ ledger.StockLineRepository = (*GormStockLineRepository)(nil)
