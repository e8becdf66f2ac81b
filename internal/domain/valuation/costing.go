package valuation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/shared"
)

// CostingMethod defines the order in which cost layers are consumed
type CostingMethod string

const (
	// CostingMethodFIFO consumes the oldest layers first
	CostingMethodFIFO CostingMethod = "FIFO"
	// CostingMethodLIFO consumes the newest layers first
	CostingMethodLIFO CostingMethod = "LIFO"
)

// IsValid checks if the costing method is valid
func (m CostingMethod) IsValid() bool {
	switch m {
	case CostingMethodFIFO, CostingMethodLIFO:
		return true
	}
	return false
}

// String returns the string representation
func (m CostingMethod) String() string {
	return string(m)
}

// AllCostingMethods returns all valid costing methods
func AllCostingMethods() []CostingMethod {
	return []CostingMethod{CostingMethodFIFO, CostingMethodLIFO}
}

// LayerConsumption represents the quantity taken from a single cost layer
type LayerConsumption struct {
	LayerID          uuid.UUID       // ID of the consumed layer
	ConsumedQuantity decimal.Decimal // Quantity taken from this layer
	UnitCost         decimal.Decimal // Unit cost of this layer
	Cost             decimal.Decimal // ConsumedQuantity * UnitCost
	RemainingInLayer decimal.Decimal // Remaining quantity after consumption
	LayerExhausted   bool            // True if the layer is now exhausted
}

// ConsumptionResult represents the complete result of costing an issue
type ConsumptionResult struct {
	Consumed            []LayerConsumption // Per-layer consumptions in order
	TotalConsumed       decimal.Decimal    // Total quantity consumed
	TotalCost           decimal.Decimal    // Total cost of the consumed quantity
	WeightedAverageCost decimal.Decimal    // Cost per unit across all layers
	RemainingQuantity   decimal.Decimal    // Quantity that could not be costed
	FullyFulfilled      bool               // True if all requested quantity was costed
}

// CostingStrategy selects and costs layers for an issue
type CostingStrategy interface {
	// Method returns the costing method
	Method() CostingMethod
	// SelectLayers calculates which layers to consume and how much from each.
	// The input layers are not mutated; apply the result with ApplyConsumptions.
	SelectLayers(requestedQuantity decimal.Decimal, layers []CostLayer) (*ConsumptionResult, error)
}

// FIFOCostingStrategy consumes layers oldest first by received time
type FIFOCostingStrategy struct{}

// NewFIFOCostingStrategy creates a new FIFO costing strategy
func NewFIFOCostingStrategy() *FIFOCostingStrategy {
	return &FIFOCostingStrategy{}
}

// Method returns the costing method
func (s *FIFOCostingStrategy) Method() CostingMethod {
	return CostingMethodFIFO
}

// SelectLayers selects layers in FIFO order (oldest received first)
func (s *FIFOCostingStrategy) SelectLayers(requestedQuantity decimal.Decimal, layers []CostLayer) (*ConsumptionResult, error) {
	sorted, err := prepareLayers(requestedQuantity, layers)
	if err != nil {
		return nil, err
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ReceivedAt.Equal(sorted[j].ReceivedAt) {
			return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt)
		}
		// Tie-break on creation time so concurrent receipts order stably
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return calculateConsumptions(requestedQuantity, sorted), nil
}

// LIFOCostingStrategy consumes layers newest first by received time
type LIFOCostingStrategy struct{}

// NewLIFOCostingStrategy creates a new LIFO costing strategy
func NewLIFOCostingStrategy() *LIFOCostingStrategy {
	return &LIFOCostingStrategy{}
}

// Method returns the costing method
func (s *LIFOCostingStrategy) Method() CostingMethod {
	return CostingMethodLIFO
}

// SelectLayers selects layers in LIFO order (newest received first)
func (s *LIFOCostingStrategy) SelectLayers(requestedQuantity decimal.Decimal, layers []CostLayer) (*ConsumptionResult, error) {
	sorted, err := prepareLayers(requestedQuantity, layers)
	if err != nil {
		return nil, err
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ReceivedAt.Equal(sorted[j].ReceivedAt) {
			return sorted[i].ReceivedAt.After(sorted[j].ReceivedAt)
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return calculateConsumptions(requestedQuantity, sorted), nil
}

// StrategyForMethod returns the costing strategy for a method
func StrategyForMethod(method CostingMethod) (CostingStrategy, error) {
	switch method {
	case CostingMethodFIFO:
		return NewFIFOCostingStrategy(), nil
	case CostingMethodLIFO:
		return NewLIFOCostingStrategy(), nil
	default:
		return nil, shared.NewDomainError("INVALID_COSTING_METHOD", "Unknown costing method")
	}
}

// prepareLayers validates the request and copies the non-exhausted layers
func prepareLayers(requestedQuantity decimal.Decimal, layers []CostLayer) ([]CostLayer, error) {
	if requestedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}
	available := make([]CostLayer, 0, len(layers))
	for _, layer := range layers {
		if layer.HasRemaining() {
			available = append(available, layer)
		}
	}
	return available, nil
}

// calculateConsumptions walks the sorted layers and takes greedily from each
func calculateConsumptions(requestedQuantity decimal.Decimal, sorted []CostLayer) *ConsumptionResult {
	consumed := make([]LayerConsumption, 0)
	remaining := requestedQuantity
	totalConsumed := decimal.Zero
	totalCost := decimal.Zero

	for _, layer := range sorted {
		if remaining.IsZero() {
			break
		}

		take := decimal.Min(remaining, layer.QuantityRemaining)
		remainingInLayer := layer.QuantityRemaining.Sub(take)
		cost := take.Mul(layer.UnitCost)

		consumed = append(consumed, LayerConsumption{
			LayerID:          layer.ID,
			ConsumedQuantity: take,
			UnitCost:         layer.UnitCost,
			Cost:             cost,
			RemainingInLayer: remainingInLayer,
			LayerExhausted:   remainingInLayer.IsZero(),
		})

		totalConsumed = totalConsumed.Add(take)
		totalCost = totalCost.Add(cost)
		remaining = remaining.Sub(take)
	}

	var weightedAvgCost decimal.Decimal
	if totalConsumed.GreaterThan(decimal.Zero) {
		weightedAvgCost = totalCost.Div(totalConsumed).Round(4)
	}

	return &ConsumptionResult{
		Consumed:            consumed,
		TotalConsumed:       totalConsumed,
		TotalCost:           totalCost,
		WeightedAverageCost: weightedAvgCost,
		RemainingQuantity:   remaining,
		FullyFulfilled:      remaining.IsZero(),
	}
}

// ApplyConsumptions applies a consumption result to the actual layer entities
func ApplyConsumptions(layers []*CostLayer, result *ConsumptionResult) error {
	if result == nil {
		return shared.NewDomainError("INVALID_RESULT", "Consumption result cannot be nil")
	}

	layerMap := make(map[uuid.UUID]*CostLayer)
	for _, layer := range layers {
		layerMap[layer.ID] = layer
	}

	for _, consumption := range result.Consumed {
		layer, exists := layerMap[consumption.LayerID]
		if !exists {
			return shared.NewDomainError("LAYER_NOT_FOUND", "Cost layer not found: "+consumption.LayerID.String())
		}
		taken := layer.Consume(consumption.ConsumedQuantity)
		if !taken.Equal(consumption.ConsumedQuantity) {
			return shared.NewDomainError("CONSUMPTION_MISMATCH", "Layer consumption amount mismatch")
		}
	}

	return nil
}

// ValidateLayerAvailability checks whether the layers can cover the request
func ValidateLayerAvailability(layers []CostLayer, requestedQuantity decimal.Decimal) (bool, decimal.Decimal) {
	totalAvailable := decimal.Zero
	for _, layer := range layers {
		if layer.HasRemaining() {
			totalAvailable = totalAvailable.Add(layer.QuantityRemaining)
		}
	}
	return totalAvailable.GreaterThanOrEqual(requestedQuantity), totalAvailable
}

// TotalLayerValue sums the remaining value across layers
func TotalLayerValue(layers []CostLayer) decimal.Decimal {
	total := decimal.Zero
	for _, layer := range layers {
		total = total.Add(layer.RemainingValue())
	}
	return total
}
