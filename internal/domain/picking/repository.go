package picking

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for picking list persistence
type Repository interface {
	// FindByID finds a picking list with its tasks by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*PickingList, error)

	// FindByReference finds picking lists created for a source document
	FindByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) ([]PickingList, error)

	// FindOpen finds lists that are not yet finalized for a warehouse
	FindOpen(ctx context.Context, tenantID, warehouseID uuid.UUID) ([]PickingList, error)

	// FindTaskByID finds a single task by ID within a tenant
	FindTaskByID(ctx context.Context, tenantID, taskID uuid.UUID) (*PickingTask, error)

	// Save creates or updates a picking list together with its tasks
	Save(ctx context.Context, list *PickingList) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, list *PickingList) error

	// SaveTask updates a single task
	SaveTask(ctx context.Context, task *PickingTask) error
}
