package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/picking"
	"github.com/wms/backend/internal/domain/shared"
)

// GormPickingRepository implements picking.Repository using GORM
type GormPickingRepository struct {
	db *gorm.DB
}

// NewGormPickingRepository creates a new GormPickingRepository
func NewGormPickingRepository(db *gorm.DB) *GormPickingRepository {
	return &GormPickingRepository{db: db}
}

// FindByID finds a picking list with its tasks by ID within a tenant
func (r *GormPickingRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*picking.PickingList, error) {
	var list picking.PickingList
	if err := r.db.WithContext(ctx).
		Preload("Tasks").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&list).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &list, nil
}

// FindByReference finds picking lists created for a source document
func (r *GormPickingRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) ([]picking.PickingList, error) {
	var lists []picking.PickingList
	if err := r.db.WithContext(ctx).
		Preload("Tasks").
		Where("tenant_id = ? AND reference_id = ?", tenantID, referenceID).
		Order("created_at ASC").
		Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

// FindOpen finds lists that are not yet finalized for a warehouse
func (r *GormPickingRepository) FindOpen(ctx context.Context, tenantID, warehouseID uuid.UUID) ([]picking.PickingList, error) {
	var lists []picking.PickingList
	if err := r.db.WithContext(ctx).
		Preload("Tasks").
		Where("tenant_id = ? AND warehouse_id = ?", tenantID, warehouseID).
		Where("status IN ?", []picking.ListStatus{
			picking.ListStatusDraft,
			picking.ListStatusAssigned,
			picking.ListStatusInProgress,
		}).
		Order("created_at ASC").
		Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

// FindTaskByID finds a single task by ID within a tenant
func (r *GormPickingRepository) FindTaskByID(ctx context.Context, tenantID, taskID uuid.UUID) (*picking.PickingTask, error) {
	var task picking.PickingTask
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, taskID).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// Save creates or updates a picking list together with its tasks
func (r *GormPickingRepository) Save(ctx context.Context, list *picking.PickingList) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(list).Error
}

// SaveWithLock saves with optimistic locking (checks version).
// Tasks are saved individually via SaveTask; only list columns are guarded.
func (r *GormPickingRepository) SaveWithLock(ctx context.Context, list *picking.PickingList) error {
	result := r.db.WithContext(ctx).
		Model(list).
		Where("id = ? AND version = ?", list.ID, list.Version-1).
		Updates(map[string]interface{}{
			"status":       list.Status,
			"assignee_id":  list.AssigneeID,
			"completed_at": list.CompletedAt,
			"version":      list.Version,
			"updated_at":   list.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Picking list was modified by another transaction")
	}
	return nil
}

// SaveTask updates a single task
func (r *GormPickingRepository) SaveTask(ctx context.Context, task *picking.PickingTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// Ensure GormPickingRepository implements Repository
var _ picking.Repository = (*GormPickingRepository)(nil)
