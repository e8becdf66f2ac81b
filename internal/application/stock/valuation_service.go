package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/valuation"
)

// ValuationService answers value questions from the cost layers and
// cross-checks them against the ledger. Layers are written by LedgerService;
// this service only reads them.
type ValuationService struct {
	layerRepo    valuation.CostLayerRepository
	lineRepo     ledger.StockLineRepository
	movementRepo ledger.MovementRepository
	logger       *zap.Logger
}

// NewValuationService creates a new ValuationService
func NewValuationService(
	layerRepo valuation.CostLayerRepository,
	lineRepo ledger.StockLineRepository,
	movementRepo ledger.MovementRepository,
	logger *zap.Logger,
) *ValuationService {
	return &ValuationService{
		layerRepo:    layerRepo,
		lineRepo:     lineRepo,
		movementRepo: movementRepo,
		logger:       logger,
	}
}

// GetTotalValue returns the valued on-hand for a variant in a warehouse
func (s *ValuationService) GetTotalValue(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (*StockValue, error) {
	layers, err := s.layerRepo.FindOpenLayers(ctx, tenantID, variantID, warehouseID)
	if err != nil {
		return nil, err
	}

	quantity := decimal.Zero
	value := decimal.Zero
	for _, layer := range layers {
		quantity = quantity.Add(layer.QuantityRemaining)
		value = value.Add(layer.RemainingValue())
	}

	avg := decimal.Zero
	if quantity.GreaterThan(decimal.Zero) {
		avg = value.Div(quantity).Round(4)
	}
	return &StockValue{
		Quantity:                quantity,
		Value:                   value,
		WeightedAverageUnitCost: avg,
	}, nil
}

// GetLayers returns the open cost layers for a variant, oldest first
func (s *ValuationService) GetLayers(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]valuation.CostLayer, error) {
	return s.layerRepo.FindOpenLayers(ctx, tenantID, variantID, warehouseID)
}

// PreviewConsumption costs an issue without writing anything
func (s *ValuationService) PreviewConsumption(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID, quantity decimal.Decimal, method valuation.CostingMethod) (*valuation.ConsumptionResult, error) {
	strategy, err := valuation.StrategyForMethod(method)
	if err != nil {
		return nil, err
	}
	layers, err := s.layerRepo.FindOpenLayers(ctx, tenantID, variantID, warehouseID)
	if err != nil {
		return nil, err
	}
	return strategy.SelectLayers(quantity, layers)
}

// Reconcile cross-checks the three quantity views for a variant: the stock
// lines, the net of the movement journal and the open layer remainders. Any
// divergence is reported and returned as CONSISTENCY_ERROR.
func (s *ValuationService) Reconcile(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (*ReconciliationReport, error) {
	lineQuantity, err := s.lineRepo.SumOnHand(ctx, tenantID, ledger.StockLineQuery{
		VariantID:   variantID,
		WarehouseID: warehouseID,
	})
	if err != nil {
		return nil, err
	}
	movementNet, err := s.movementRepo.SumSignedQuantity(ctx, tenantID, variantID, warehouseID)
	if err != nil {
		return nil, err
	}
	layerQuantity, err := s.layerRepo.SumRemainingQuantity(ctx, tenantID, variantID, warehouseID)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		VariantID:     variantID,
		WarehouseID:   warehouseID,
		LineQuantity:  lineQuantity,
		MovementNet:   movementNet,
		LayerQuantity: layerQuantity,
		Consistent:    lineQuantity.Equal(movementNet) && lineQuantity.Equal(layerQuantity),
		CheckedAt:     time.Now(),
	}

	if !report.Consistent {
		s.logger.Error("Stock reconciliation mismatch",
			zap.String("tenant_id", tenantID.String()),
			zap.String("variant_id", variantID.String()),
			zap.String("warehouse_id", warehouseID.String()),
			zap.String("line_quantity", lineQuantity.String()),
			zap.String("movement_net", movementNet.String()),
			zap.String("layer_quantity", layerQuantity.String()),
		)
		return report, shared.ErrConsistency
	}
	return report, nil
}
