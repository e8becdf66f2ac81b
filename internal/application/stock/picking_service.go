package stock

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/picking"
	"github.com/wms/backend/internal/domain/shared"
)

// PickingService builds picking lists from demands and turns completed picks
// into issue movements. Allocation snapshots the pickable lines; the ledger
// only changes when the list completes.
type PickingService struct {
	pickingRepo        picking.Repository
	lineRepo           ledger.StockLineRepository
	allocator          *picking.Allocator
	ledgerService      *LedgerService
	reservationService *ReservationService
	txScope            TransactionScope
	locker             KeyedLocker
	logger             *zap.Logger
}

// NewPickingService creates a new PickingService
func NewPickingService(
	pickingRepo picking.Repository,
	lineRepo ledger.StockLineRepository,
	ledgerService *LedgerService,
	reservationService *ReservationService,
	txScope TransactionScope,
	locker KeyedLocker,
	logger *zap.Logger,
) *PickingService {
	return &PickingService{
		pickingRepo:        pickingRepo,
		lineRepo:           lineRepo,
		allocator:          picking.NewAllocator(),
		ledgerService:      ledgerService,
		reservationService: reservationService,
		txScope:            txScope,
		locker:             locker,
		logger:             logger,
	}
}

// CreatePickingList allocates the demands and persists the resulting list.
// Demands that cannot be fully covered produce shortfalls, not errors; only a
// list with no allocatable stock at all is rejected.
func (s *PickingService) CreatePickingList(ctx context.Context, cmd CreatePickingListCommand) (*PickingListResult, error) {
	if len(cmd.Demands) == 0 {
		return nil, shared.NewDomainError("INVALID_DEMANDS", "A picking list needs at least one demand")
	}
	mode := cmd.Mode
	if mode == "" {
		mode = picking.AllocationModeAuto
	}
	if !mode.IsValid() {
		return nil, shared.NewDomainError("INVALID_MODE", "Unknown allocation mode")
	}

	list, err := picking.NewPickingList(cmd.TenantID, cmd.WarehouseID, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}

	result := &PickingListResult{List: list, Shortfalls: make([]DemandShortfall, 0), FullyAllocated: true}
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, demand := range cmd.Demands {
			if txErr := s.allocateDemand(ctx, repos, list, mode, demand, result); txErr != nil {
				return txErr
			}
		}
		if len(list.Tasks) == 0 {
			return shared.ErrNoStockAvailable
		}
		return repos.PickingRepo().Save(ctx, list)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Picking list created",
		zap.String("picking_list_id", list.ID.String()),
		zap.String("reference_id", cmd.ReferenceID),
		zap.Int("tasks", len(list.Tasks)),
		zap.Int("shortfalls", len(result.Shortfalls)),
	)
	return result, nil
}

func (s *PickingService) allocateDemand(ctx context.Context, repos TransactionalRepositories, list *picking.PickingList, mode picking.AllocationMode, demand DemandLine, result *PickingListResult) error {
	// Serialize against writers on the same variant while the snapshot is taken
	release, err := s.locker.Acquire(ctx, StockKey(list.TenantID, demand.VariantID, list.WarehouseID))
	if err != nil {
		return err
	}
	defer release()

	lines, err := repos.StockLineRepo().FindPickable(ctx, list.TenantID, demand.VariantID, list.WarehouseID)
	if err != nil {
		return err
	}

	var allocation *picking.AllocationResult
	switch mode {
	case picking.AllocationModeExplicit:
		allocation, err = s.allocator.AllocateExplicit(demand.Quantity, demand.LineRequests, lines)
	default:
		allocation, err = s.allocator.Allocate(demand.Quantity, lines)
	}
	if err != nil {
		domainErr, ok := err.(*shared.DomainError)
		if ok && domainErr.Code == shared.ErrNoStockAvailable.Code {
			result.Shortfalls = append(result.Shortfalls, DemandShortfall{VariantID: demand.VariantID, Quantity: demand.Quantity})
			result.FullyAllocated = false
			return nil
		}
		return err
	}

	for _, alloc := range allocation.Allocations {
		task, taskErr := picking.NewPickingTask(list.TenantID, list.ID, alloc.VariantID, alloc.LocationID, alloc.BatchID, alloc.Quantity)
		if taskErr != nil {
			return taskErr
		}
		if taskErr := list.AddTask(*task); taskErr != nil {
			return taskErr
		}
	}
	if !allocation.FullyAllocated {
		result.Shortfalls = append(result.Shortfalls, DemandShortfall{VariantID: demand.VariantID, Quantity: allocation.Shortfall})
		result.FullyAllocated = false
	}
	return nil
}

// GetPickingList loads a list with its tasks
func (s *PickingService) GetPickingList(ctx context.Context, tenantID, listID uuid.UUID) (*picking.PickingList, error) {
	return s.pickingRepo.FindByID(ctx, tenantID, listID)
}

// AssignPickingList assigns a picker to the list
func (s *PickingService) AssignPickingList(ctx context.Context, tenantID, listID, assigneeID uuid.UUID) (*picking.PickingList, error) {
	list, err := s.pickingRepo.FindByID(ctx, tenantID, listID)
	if err != nil {
		return nil, err
	}
	if err := list.Assign(assigneeID); err != nil {
		return nil, err
	}
	if err := s.pickingRepo.SaveWithLock(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateTask records the picked quantity on one task and refreshes the parent
// list status
func (s *PickingService) UpdateTask(ctx context.Context, cmd UpdateTaskCommand) (*picking.PickingTask, error) {
	task, err := s.pickingRepo.FindTaskByID(ctx, cmd.TenantID, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	list, err := s.pickingRepo.FindByID(ctx, cmd.TenantID, task.PickingListID)
	if err != nil {
		return nil, err
	}
	if list.Status.IsTerminal() {
		return nil, shared.NewDomainError("INVALID_STATE", "Picking list is already finalized")
	}
	if err := task.RecordPick(cmd.PickedQuantity); err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if txErr := repos.PickingRepo().SaveTask(ctx, task); txErr != nil {
			return txErr
		}
		for i := range list.Tasks {
			if list.Tasks[i].ID == task.ID {
				list.Tasks[i] = *task
			}
		}
		list.RecomputeStatus()
		return repos.PickingRepo().Save(ctx, list)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CompletePickingList finalizes the list, posts an issue movement per picked
// task and fulfills the reservations held for the same reference. The issues
// and the list state change commit in one transaction, so a failed issue
// leaves the list and the ledger untouched.
func (s *PickingService) CompletePickingList(ctx context.Context, cmd CompletePickingListCommand) (*picking.PickingList, error) {
	list, err := s.pickingRepo.FindByID(ctx, cmd.TenantID, cmd.ListID)
	if err != nil {
		return nil, err
	}
	if list.Status.IsTerminal() {
		return nil, shared.NewDomainError("INVALID_STATE", "Picking list is already finalized")
	}
	if !list.AllTasksPicked() {
		return nil, shared.NewDomainError("INVALID_STATE", "All tasks must be fully picked before completing the list")
	}

	// Lock every stock key the list touches, in sorted order so two lists
	// over the same variants cannot deadlock each other.
	keys := make([]string, 0, len(list.Tasks))
	seen := make(map[string]struct{}, len(list.Tasks))
	for i := range list.Tasks {
		key := StockKey(cmd.TenantID, list.Tasks[i].VariantID, list.WarehouseID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		release, err := s.locker.Acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Reload under the locks; a concurrent complete may have won.
		fresh, txErr := repos.PickingRepo().FindByID(ctx, cmd.TenantID, cmd.ListID)
		if txErr != nil {
			return txErr
		}
		if fresh.Status.IsTerminal() {
			return shared.NewDomainError("INVALID_STATE", "Picking list is already finalized")
		}
		if !fresh.AllTasksPicked() {
			return shared.NewDomainError("INVALID_STATE", "All tasks must be fully picked before completing the list")
		}

		for i := range fresh.Tasks {
			task := &fresh.Tasks[i]
			location := task.LocationID
			if _, txErr = s.ledgerService.ApplyMovement(ctx, repos, PostMovementCommand{
				TenantID:       cmd.TenantID,
				VariantID:      task.VariantID,
				WarehouseID:    fresh.WarehouseID,
				Type:           ledger.MovementTypeIssue,
				Quantity:       task.PickedQuantity,
				SourceLocation: &location,
				BatchID:        task.BatchID,
				ReferenceID:    fresh.ReferenceID,
				CostingMethod:  cmd.CostingMethod,
			}); txErr != nil {
				return txErr
			}
		}

		if txErr = fresh.Complete(); txErr != nil {
			return txErr
		}
		if txErr = repos.PickingRepo().SaveWithLock(ctx, fresh); txErr != nil {
			return txErr
		}
		list = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	fulfilled, err := s.reservationService.FulfillByReference(ctx, cmd.TenantID, list.ReferenceID)
	if err != nil {
		s.logger.Warn("Failed to fulfill reservations for completed list",
			zap.String("picking_list_id", list.ID.String()),
			zap.String("reference_id", list.ReferenceID),
			zap.Error(err),
		)
	}

	s.logger.Info("Picking list completed",
		zap.String("picking_list_id", list.ID.String()),
		zap.String("reference_id", list.ReferenceID),
		zap.Int("reservations_fulfilled", fulfilled),
	)
	return list, nil
}

// CancelPickingList abandons an open list without touching the ledger
func (s *PickingService) CancelPickingList(ctx context.Context, tenantID, listID uuid.UUID) (*picking.PickingList, error) {
	list, err := s.pickingRepo.FindByID(ctx, tenantID, listID)
	if err != nil {
		return nil, err
	}
	if err := list.Cancel(); err != nil {
		return nil, err
	}
	if err := s.pickingRepo.SaveWithLock(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}
