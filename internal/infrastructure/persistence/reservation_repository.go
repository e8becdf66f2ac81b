package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/shared"
)

// GormReservationRepository implements reservation.Repository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID within a tenant
func (r *GormReservationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*reservation.Reservation, error) {
	var res reservation.Reservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// FindByReference finds all reservations created for a source document
func (r *GormReservationRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) ([]reservation.Reservation, error) {
	var reservations []reservation.Reservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference_id = ?", tenantID, referenceID).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindHeld finds pending and active reservations for a variant in a warehouse
func (r *GormReservationRepository) FindHeld(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]reservation.Reservation, error) {
	var reservations []reservation.Reservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID).
		Where("status IN ?", []reservation.Status{reservation.StatusPending, reservation.StatusActive}).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindExpired finds held reservations whose expiry is at or before the cutoff.
// Queried across tenants; the expiry sweep runs for the whole deployment.
func (r *GormReservationRepository) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]reservation.Reservation, error) {
	var reservations []reservation.Reservation
	query := r.db.WithContext(ctx).
		Where("status IN ?", []reservation.Status{reservation.StatusPending, reservation.StatusActive}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// SumHeldQuantity sums the quantity held against ATP for a variant in a warehouse
func (r *GormReservationRepository) SumHeldQuantity(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&reservation.Reservation{}).
		Select("COALESCE(SUM(quantity), 0) as total").
		Where("tenant_id = ? AND variant_id = ? AND warehouse_id = ?", tenantID, variantID, warehouseID).
		Where("status IN ?", []reservation.Status{reservation.StatusPending, reservation.StatusActive}).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Save creates or updates a reservation
func (r *GormReservationRepository) Save(ctx context.Context, res *reservation.Reservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormReservationRepository) SaveWithLock(ctx context.Context, res *reservation.Reservation) error {
	result := r.db.WithContext(ctx).
		Model(res).
		Where("id = ? AND version = ?", res.ID, res.Version-1).
		Updates(map[string]interface{}{
			"status":       res.Status,
			"expires_at":   res.ExpiresAt,
			"released_at":  res.ReleasedAt,
			"fulfilled_at": res.FulfilledAt,
			"version":      res.Version,
			"updated_at":   res.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Reservation was modified by another transaction")
	}
	return nil
}

// Ensure GormReservationRepository implements Repository
var _ reservation.Repository = (*GormReservationRepository)(nil)
