package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
)

// GormMovementRepository implements ledger.MovementRepository using GORM.
// Movements are append-only; the repository exposes no update or delete.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// FindByID finds a movement by its ID within a tenant
func (r *GormMovementRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Movement, error) {
	var movement ledger.Movement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&movement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &movement, nil
}

// FindByReference finds movements posted for a source document
func (r *GormMovementRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) ([]ledger.Movement, error) {
	var movements []ledger.Movement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference_id = ?", tenantID, referenceID).
		Order("posted_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// FindByVariant finds movements for a variant in a warehouse
func (r *GormMovementRepository) FindByVariant(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID, filter shared.Filter) ([]ledger.Movement, error) {
	var movements []ledger.Movement
	query := applyMovementFilter(
		r.db.WithContext(ctx).Model(&ledger.Movement{}).
			Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID),
		filter,
	)

	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// FindByDateRange finds movements within a posting time range
func (r *GormMovementRepository) FindByDateRange(ctx context.Context, tenantID uuid.UUID, start, end time.Time, filter shared.Filter) ([]ledger.Movement, error) {
	var movements []ledger.Movement
	query := applyMovementFilter(
		r.db.WithContext(ctx).Model(&ledger.Movement{}).
			Where("tenant_id = ? AND posted_at >= ? AND posted_at < ?", tenantID, start, end),
		filter,
	)

	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// Create appends a new movement record
func (r *GormMovementRepository) Create(ctx context.Context, movement *ledger.Movement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// SumSignedQuantity sums signed quantities for a variant in a warehouse.
// Receipts count positive, issues negative, adjustments by the location side
// they touched, transfers zero. Mirrors Movement.SignedQuantity in SQL.
func (r *GormMovementRepository) SumSignedQuantity(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&ledger.Movement{}).
		Select(`COALESCE(SUM(CASE
			WHEN type = 'RECEIPT' THEN quantity
			WHEN type = 'ISSUE' THEN -quantity
			WHEN type = 'ADJUSTMENT' AND source_location IS NOT NULL THEN -quantity
			WHEN type = 'ADJUSTMENT' THEN quantity
			ELSE 0
		END), 0) as total`).
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// applyMovementFilter applies pagination and ordering to a movement query
func applyMovementFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "type":
			query = query.Where("type = ?", value)
		case "reference_id":
			query = query.Where("reference_id = ?", value)
		case "batch_id":
			query = query.Where("batch_id = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("posted_at DESC")
	}

	return query
}

// Ensure GormMovementRepository implements MovementRepository
var _ ledger.MovementRepository = (*GormMovementRepository)(nil)
