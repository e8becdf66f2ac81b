package picking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

// ListStatus represents the lifecycle state of a picking list
type ListStatus string

const (
	// ListStatusDraft means the list is allocated but not yet assigned
	ListStatusDraft ListStatus = "DRAFT"
	// ListStatusAssigned means a picker has been assigned
	ListStatusAssigned ListStatus = "ASSIGNED"
	// ListStatusInProgress means at least one task has been picked
	ListStatusInProgress ListStatus = "IN_PROGRESS"
	// ListStatusCompleted means the list was confirmed and stock issued
	ListStatusCompleted ListStatus = "COMPLETED"
	// ListStatusCancelled means the list was abandoned before completion
	ListStatusCancelled ListStatus = "CANCELLED"
)

// String returns the string representation
func (s ListStatus) String() string {
	return string(s)
}

// IsValid checks if the list status is valid
func (s ListStatus) IsValid() bool {
	switch s {
	case ListStatusDraft, ListStatusAssigned, ListStatusInProgress, ListStatusCompleted, ListStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are allowed
func (s ListStatus) IsTerminal() bool {
	return s == ListStatusCompleted || s == ListStatusCancelled
}

// TaskStatus represents the lifecycle state of a single picking task
type TaskStatus string

const (
	TaskStatusDraft      TaskStatus = "DRAFT"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
)

// String returns the string representation of TaskStatus
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid checks if the task status is valid
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusDraft, TaskStatusAssigned, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// PickingTask directs a picker to take a quantity of one variant from one
// location. Tasks are created by the allocator and updated as picks happen.
type PickingTask struct {
	shared.BaseEntity
	PickingListID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariantID         uuid.UUID       `gorm:"type:uuid;not null"`
	LocationID        uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID           *uuid.UUID      `gorm:"type:uuid"`
	RequestedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PickedQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status            TaskStatus      `gorm:"type:varchar(20);not null;default:'DRAFT'"`
}

// TableName returns the table name for GORM
func (PickingTask) TableName() string {
	return "picking_tasks"
}

// NewPickingTask creates a draft task
func NewPickingTask(
	tenantID, pickingListID, variantID, locationID uuid.UUID,
	batchID *uuid.UUID,
	requestedQuantity decimal.Decimal,
) (*PickingTask, error) {
	if variantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	if requestedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	return &PickingTask{
		BaseEntity:        shared.NewBaseEntity(),
		PickingListID:     pickingListID,
		TenantID:          tenantID,
		VariantID:         variantID,
		LocationID:        locationID,
		BatchID:           batchID,
		RequestedQuantity: requestedQuantity,
		PickedQuantity:    decimal.Zero,
		Status:            TaskStatusDraft,
	}, nil
}

// RecordPick records the actually picked quantity. Picking more than requested
// is rejected; a partial pick keeps the task in progress until the remainder is
// picked, a full pick completes it.
func (t *PickingTask) RecordPick(quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Picked quantity cannot be negative")
	}
	if quantity.GreaterThan(t.RequestedQuantity) {
		return shared.NewDomainError("INVALID_QUANTITY", "Picked quantity cannot exceed requested quantity")
	}
	t.PickedQuantity = quantity
	switch {
	case quantity.GreaterThanOrEqual(t.RequestedQuantity):
		t.Status = TaskStatusCompleted
	case quantity.IsPositive():
		t.Status = TaskStatusInProgress
	default:
		// A zero pick rolls back any earlier progress
		if t.HasProgress() {
			t.Status = TaskStatusAssigned
		}
	}
	t.Touch()
	return nil
}

// HasProgress returns true once any pick has been recorded on the task
func (t *PickingTask) HasProgress() bool {
	return t.Status == TaskStatusInProgress || t.Status == TaskStatusCompleted
}

// IsComplete returns true if the task was picked in full
func (t *PickingTask) IsComplete() bool {
	return t.Status == TaskStatusCompleted
}

// PickingList groups the tasks that fulfill one outbound document
type PickingList struct {
	shared.TenantAggregateRoot
	WarehouseID uuid.UUID     `gorm:"type:uuid;not null;index"`
	ReferenceID string        `gorm:"type:varchar(100);not null;index:idx_picking_list_reference"`
	Status      ListStatus    `gorm:"type:varchar(20);not null;index"`
	AssigneeID  *uuid.UUID    `gorm:"type:uuid"`
	Tasks       []PickingTask `gorm:"foreignKey:PickingListID"`
	CompletedAt *time.Time
}

// TableName returns the table name for GORM
func (PickingList) TableName() string {
	return "picking_lists"
}

// NewPickingList creates a draft picking list
func NewPickingList(tenantID, warehouseID uuid.UUID, referenceID string) (*PickingList, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	if referenceID == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Reference ID cannot be empty")
	}

	return &PickingList{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		WarehouseID:         warehouseID,
		ReferenceID:         referenceID,
		Status:              ListStatusDraft,
		Tasks:               make([]PickingTask, 0),
	}, nil
}

// AddTask appends an allocated task to the list
func (l *PickingList) AddTask(task PickingTask) error {
	if l.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot add tasks to a finalized picking list")
	}
	task.PickingListID = l.ID
	l.Tasks = append(l.Tasks, task)
	l.UpdatedAt = time.Now()
	return nil
}

// Assign assigns the list to a picker
func (l *PickingList) Assign(assigneeID uuid.UUID) error {
	if l.Status != ListStatusDraft && l.Status != ListStatusAssigned {
		return shared.NewDomainError("INVALID_STATE", "Only draft or assigned lists can be assigned")
	}
	if assigneeID == uuid.Nil {
		return shared.NewDomainError("INVALID_ASSIGNEE", "Assignee ID cannot be empty")
	}
	l.AssigneeID = &assigneeID
	l.Status = ListStatusAssigned
	for i := range l.Tasks {
		if l.Tasks[i].Status == TaskStatusDraft {
			l.Tasks[i].Status = TaskStatusAssigned
			l.Tasks[i].Touch()
		}
	}
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// RecomputeStatus derives the list status from its tasks. A list moves to
// in progress as soon as any task records a pick.
func (l *PickingList) RecomputeStatus() {
	if l.Status.IsTerminal() {
		return
	}
	anyProgress := false
	for i := range l.Tasks {
		if l.Tasks[i].HasProgress() {
			anyProgress = true
			break
		}
	}
	if anyProgress && l.Status != ListStatusInProgress {
		l.Status = ListStatusInProgress
		l.UpdatedAt = time.Now()
	}
}

// AllTasksPicked returns true if every task was picked in full
func (l *PickingList) AllTasksPicked() bool {
	if len(l.Tasks) == 0 {
		return false
	}
	for i := range l.Tasks {
		if !l.Tasks[i].IsComplete() {
			return false
		}
	}
	return true
}

// TotalPicked sums the picked quantity across tasks for a variant
func (l *PickingList) TotalPicked(variantID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for i := range l.Tasks {
		if l.Tasks[i].VariantID == variantID {
			total = total.Add(l.Tasks[i].PickedQuantity)
		}
	}
	return total
}

// Complete finalizes the list. Every task must be picked in full first.
func (l *PickingList) Complete() error {
	if l.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Picking list is already finalized")
	}
	if !l.AllTasksPicked() {
		return shared.NewDomainError("INVALID_STATE", "All tasks must be fully picked before completing the list")
	}
	now := time.Now()
	l.Status = ListStatusCompleted
	l.CompletedAt = &now
	l.UpdatedAt = now
	l.IncrementVersion()
	return nil
}

// Cancel abandons the list before completion
func (l *PickingList) Cancel() error {
	if l.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Picking list is already finalized")
	}
	l.Status = ListStatusCancelled
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}
