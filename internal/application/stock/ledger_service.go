package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/valuation"
)

// LedgerService posts movements and keeps the cost layers in step with the
// stock lines. Every quantity change goes through PostMovement so that the
// line, the journal and the valuation move in one transaction.
type LedgerService struct {
	lineRepo      ledger.StockLineRepository
	movementRepo  ledger.MovementRepository
	layerRepo     valuation.CostLayerRepository
	txScope       TransactionScope
	locker        KeyedLocker
	eventBus      shared.EventPublisher
	logger        *zap.Logger
	defaultMethod valuation.CostingMethod
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	lineRepo ledger.StockLineRepository,
	movementRepo ledger.MovementRepository,
	layerRepo valuation.CostLayerRepository,
	txScope TransactionScope,
	locker KeyedLocker,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
	defaultMethod valuation.CostingMethod,
) *LedgerService {
	if !defaultMethod.IsValid() {
		defaultMethod = valuation.CostingMethodFIFO
	}
	return &LedgerService{
		lineRepo:      lineRepo,
		movementRepo:  movementRepo,
		layerRepo:     layerRepo,
		txScope:       txScope,
		locker:        locker,
		eventBus:      eventBus,
		logger:        logger,
		defaultMethod: defaultMethod,
	}
}

// PostMovement validates, locks the stock key and applies the movement in
// its own transaction
func (s *LedgerService) PostMovement(ctx context.Context, cmd PostMovementCommand) (*MovementResult, error) {
	release, err := s.locker.Acquire(ctx, StockKey(cmd.TenantID, cmd.VariantID, cmd.WarehouseID))
	if err != nil {
		return nil, err
	}
	defer release()

	var result *MovementResult
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var txErr error
		result, txErr = s.ApplyMovement(ctx, repos, cmd)
		return txErr
	})
	if err != nil {
		s.logger.Warn("Movement rejected",
			zap.String("tenant_id", cmd.TenantID.String()),
			zap.String("variant_id", cmd.VariantID.String()),
			zap.String("type", cmd.Type.String()),
			zap.String("reference_id", cmd.ReferenceID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Movement posted",
		zap.String("movement_id", result.Movement.ID.String()),
		zap.String("type", cmd.Type.String()),
		zap.String("quantity", cmd.Quantity.String()),
		zap.String("reference_id", cmd.ReferenceID),
	)
	return result, nil
}

// ApplyMovement applies a movement inside the caller's transaction scope.
// The caller must already hold the stock key lock for the movement's variant
// and warehouse. Used by PostMovement and by callers that post several
// movements atomically, such as picking list completion.
func (s *LedgerService) ApplyMovement(ctx context.Context, repos TransactionalRepositories, cmd PostMovementCommand) (*MovementResult, error) {
	// Adjustments carry a counted actual, which may legitimately be zero;
	// the movement for them is built once the delta is known.
	var movement *ledger.Movement
	if cmd.Type == ledger.MovementTypeAdjustment {
		if cmd.Quantity.IsNegative() {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Counted quantity cannot be negative")
		}
	} else {
		var err error
		movement, err = ledger.NewMovement(cmd.TenantID, cmd.VariantID, cmd.WarehouseID, cmd.Type, cmd.Quantity, cmd.ReferenceID)
		if err != nil {
			return nil, err
		}
		s.decorate(movement, cmd)
	}

	switch cmd.Type {
	case ledger.MovementTypeReceipt:
		return s.applyReceipt(ctx, repos, cmd, movement)
	case ledger.MovementTypeIssue:
		return s.applyIssue(ctx, repos, cmd, movement)
	case ledger.MovementTypeTransfer:
		return s.applyTransfer(ctx, repos, cmd, movement)
	case ledger.MovementTypeAdjustment:
		return s.applyAdjustment(ctx, repos, cmd)
	default:
		return nil, shared.NewDomainError("INVALID_MOVEMENT_TYPE", "Invalid movement type")
	}
}

// GetOnHand sums the on-hand quantity for the query
func (s *LedgerService) GetOnHand(ctx context.Context, tenantID uuid.UUID, query OnHandQuery) (decimal.Decimal, error) {
	return s.lineRepo.SumOnHand(ctx, tenantID, ledger.StockLineQuery{
		VariantID:   query.VariantID,
		WarehouseID: query.WarehouseID,
		LocationID:  query.LocationID,
		BatchID:     query.BatchID,
	})
}

// GetMovementsByReference returns the journal entries for a source document
func (s *LedgerService) GetMovementsByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) ([]ledger.Movement, error) {
	return s.movementRepo.FindByReference(ctx, tenantID, referenceID)
}

func (s *LedgerService) applyReceipt(ctx context.Context, repos TransactionalRepositories, cmd PostMovementCommand, movement *ledger.Movement) (*MovementResult, error) {
	if cmd.UnitCost == nil || cmd.UnitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Receipts require a non-negative unit cost")
	}
	movement.WithUnitCost(*cmd.UnitCost)
	if cmd.DestLocation != nil {
		movement.WithDestLocation(*cmd.DestLocation)
	}

	line, err := repos.StockLineRepo().GetOrCreate(ctx, cmd.TenantID, ledger.StockLineQuery{
		VariantID:   cmd.VariantID,
		WarehouseID: cmd.WarehouseID,
		LocationID:  cmd.DestLocation,
		BatchID:     cmd.BatchID,
	})
	if err != nil {
		return nil, err
	}
	if err := line.Receive(cmd.Quantity); err != nil {
		return nil, err
	}
	if err := repos.StockLineRepo().SaveWithLock(ctx, line); err != nil {
		return nil, err
	}
	if err := repos.MovementRepo().Create(ctx, movement); err != nil {
		return nil, err
	}

	// Backdated receipts keep their physical arrival time so layer
	// consumption order stays correct regardless of posting order.
	receivedAt := movement.PostedAt
	if cmd.ReceivedAt != nil {
		receivedAt = *cmd.ReceivedAt
	}
	layer, err := valuation.NewCostLayer(cmd.TenantID, cmd.VariantID, cmd.WarehouseID, movement.ID,
		cmd.Quantity, *cmd.UnitCost, receivedAt)
	if err != nil {
		return nil, err
	}
	if err := repos.CostLayerRepo().Save(ctx, layer); err != nil {
		return nil, err
	}

	s.publish(ctx, ledger.NewStockReceivedEvent(line, movement))
	return &MovementResult{Movement: movement, OnHand: line.Quantity}, nil
}

func (s *LedgerService) applyIssue(ctx context.Context, repos TransactionalRepositories, cmd PostMovementCommand, movement *ledger.Movement) (*MovementResult, error) {
	if cmd.SourceLocation != nil {
		movement.WithSourceLocation(*cmd.SourceLocation)
	}

	line, err := repos.StockLineRepo().FindByKey(ctx, cmd.TenantID, ledger.StockLineQuery{
		VariantID:   cmd.VariantID,
		WarehouseID: cmd.WarehouseID,
		LocationID:  cmd.SourceLocation,
		BatchID:     cmd.BatchID,
	})
	if err != nil {
		return nil, err
	}
	if err := line.Issue(cmd.Quantity); err != nil {
		return nil, err
	}
	if err := repos.StockLineRepo().SaveWithLock(ctx, line); err != nil {
		return nil, err
	}

	consumption, err := s.consumeLayers(ctx, repos, cmd.TenantID, cmd.VariantID, cmd.WarehouseID, cmd.Quantity, cmd.CostingMethod)
	if err != nil {
		return nil, err
	}
	movement.WithTotalCost(consumption.TotalCost)
	if err := repos.MovementRepo().Create(ctx, movement); err != nil {
		return nil, err
	}

	s.publish(ctx, ledger.NewStockIssuedEvent(line, movement))
	return &MovementResult{Movement: movement, OnHand: line.Quantity, Consumption: consumption}, nil
}

func (s *LedgerService) applyTransfer(ctx context.Context, repos TransactionalRepositories, cmd PostMovementCommand, movement *ledger.Movement) (*MovementResult, error) {
	if cmd.SourceLocation == nil || cmd.DestLocation == nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Transfers require a source and a destination location")
	}
	if *cmd.SourceLocation == *cmd.DestLocation {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Transfer source and destination must differ")
	}
	movement.WithSourceLocation(*cmd.SourceLocation).WithDestLocation(*cmd.DestLocation)

	source, err := repos.StockLineRepo().FindByKey(ctx, cmd.TenantID, ledger.StockLineQuery{
		VariantID:   cmd.VariantID,
		WarehouseID: cmd.WarehouseID,
		LocationID:  cmd.SourceLocation,
		BatchID:     cmd.BatchID,
	})
	if err != nil {
		return nil, err
	}
	if err := source.Issue(cmd.Quantity); err != nil {
		return nil, err
	}

	dest, err := repos.StockLineRepo().GetOrCreate(ctx, cmd.TenantID, ledger.StockLineQuery{
		VariantID:   cmd.VariantID,
		WarehouseID: cmd.WarehouseID,
		LocationID:  cmd.DestLocation,
		BatchID:     cmd.BatchID,
	})
	if err != nil {
		return nil, err
	}
	if err := dest.Receive(cmd.Quantity); err != nil {
		return nil, err
	}

	if err := repos.StockLineRepo().SaveWithLock(ctx, source); err != nil {
		return nil, err
	}
	if err := repos.StockLineRepo().SaveWithLock(ctx, dest); err != nil {
		return nil, err
	}
	if err := repos.MovementRepo().Create(ctx, movement); err != nil {
		return nil, err
	}

	s.publish(ctx, ledger.NewStockTransferredEvent(source, movement))
	return &MovementResult{Movement: movement, OnHand: dest.Quantity}, nil
}

func (s *LedgerService) decorate(movement *ledger.Movement, cmd PostMovementCommand) {
	if cmd.Reason != "" {
		movement.WithReason(cmd.Reason)
	}
	if cmd.BatchID != nil {
		movement.WithBatchID(*cmd.BatchID)
	}
}

// applyAdjustment treats cmd.Quantity as the counted actual quantity on the
// line. The movement records the absolute delta; its direction is carried by
// the location side it touches.
func (s *LedgerService) applyAdjustment(ctx context.Context, repos TransactionalRepositories, cmd PostMovementCommand) (*MovementResult, error) {
	locationID := cmd.DestLocation
	if locationID == nil {
		locationID = cmd.SourceLocation
	}

	line, err := repos.StockLineRepo().GetOrCreate(ctx, cmd.TenantID, ledger.StockLineQuery{
		VariantID:   cmd.VariantID,
		WarehouseID: cmd.WarehouseID,
		LocationID:  locationID,
		BatchID:     cmd.BatchID,
	})
	if err != nil {
		return nil, err
	}

	difference, err := line.AdjustTo(cmd.Quantity)
	if err != nil {
		return nil, err
	}
	if difference.IsZero() {
		return nil, shared.NewDomainError("NO_CHANGE", "Counted quantity matches the ledger")
	}
	if err := repos.StockLineRepo().SaveWithLock(ctx, line); err != nil {
		return nil, err
	}

	movement, err := ledger.NewMovement(cmd.TenantID, cmd.VariantID, cmd.WarehouseID,
		ledger.MovementTypeAdjustment, difference.Abs(), cmd.ReferenceID)
	if err != nil {
		return nil, err
	}
	s.decorate(movement, cmd)
	lineLocation := uuid.Nil
	if line.LocationID != nil {
		lineLocation = *line.LocationID
	}

	var consumption *valuation.ConsumptionResult
	if difference.IsPositive() {
		movement.WithDestLocation(lineLocation)
		unitCost := decimal.Zero
		if cmd.UnitCost != nil {
			unitCost = *cmd.UnitCost
		} else if avg, avgErr := s.openLayerAverage(ctx, repos, cmd.TenantID, cmd.VariantID, cmd.WarehouseID); avgErr == nil {
			unitCost = avg
		}
		layer, layerErr := valuation.NewCostLayer(cmd.TenantID, cmd.VariantID, cmd.WarehouseID, movement.ID,
			difference, unitCost, movement.PostedAt)
		if layerErr != nil {
			return nil, layerErr
		}
		movement.WithUnitCost(unitCost)
		if err := repos.CostLayerRepo().Save(ctx, layer); err != nil {
			return nil, err
		}
	} else {
		movement.WithSourceLocation(lineLocation)
		consumption, err = s.consumeLayers(ctx, repos, cmd.TenantID, cmd.VariantID, cmd.WarehouseID, difference.Abs(), cmd.CostingMethod)
		if err != nil {
			return nil, err
		}
		movement.WithTotalCost(consumption.TotalCost)
	}

	if err := repos.MovementRepo().Create(ctx, movement); err != nil {
		return nil, err
	}

	s.publish(ctx, ledger.NewStockAdjustedEvent(line, movement, difference))
	return &MovementResult{Movement: movement, OnHand: line.Quantity, Consumption: consumption}, nil
}

// consumeLayers costs an outbound quantity against the open layers. A partial
// cover means the layers have drifted from the lines and the write is refused.
func (s *LedgerService) consumeLayers(ctx context.Context, repos TransactionalRepositories, tenantID, variantID, warehouseID uuid.UUID, quantity decimal.Decimal, method valuation.CostingMethod) (*valuation.ConsumptionResult, error) {
	if method == "" {
		method = s.defaultMethod
	}
	strategy, err := valuation.StrategyForMethod(method)
	if err != nil {
		return nil, err
	}

	layers, err := repos.CostLayerRepo().FindOpenLayers(ctx, tenantID, variantID, warehouseID)
	if err != nil {
		return nil, err
	}
	result, err := strategy.SelectLayers(quantity, layers)
	if err != nil {
		return nil, err
	}
	if !result.FullyFulfilled {
		return nil, shared.ErrInsufficientLayers
	}

	mutated := make([]*valuation.CostLayer, len(layers))
	for i := range layers {
		mutated[i] = &layers[i]
	}
	if err := valuation.ApplyConsumptions(mutated, result); err != nil {
		return nil, err
	}

	touched := make([]*valuation.CostLayer, 0, len(result.Consumed))
	byID := make(map[uuid.UUID]*valuation.CostLayer, len(mutated))
	for _, layer := range mutated {
		byID[layer.ID] = layer
	}
	for _, c := range result.Consumed {
		if layer, ok := byID[c.LayerID]; ok {
			touched = append(touched, layer)
		}
	}
	if err := repos.CostLayerRepo().SaveAll(ctx, touched); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LedgerService) openLayerAverage(ctx context.Context, repos TransactionalRepositories, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	layers, err := repos.CostLayerRepo().FindOpenLayers(ctx, tenantID, variantID, warehouseID)
	if err != nil {
		return decimal.Zero, err
	}
	quantity := decimal.Zero
	value := decimal.Zero
	for _, layer := range layers {
		quantity = quantity.Add(layer.QuantityRemaining)
		value = value.Add(layer.RemainingValue())
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}
	return value.Div(quantity).Round(4), nil
}

func (s *LedgerService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
