package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/application/stock"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/valuation"
)

// StockHandler handles stock ledger and valuation API endpoints
type StockHandler struct {
	BaseHandler
	ledgerService    *stock.LedgerService
	valuationService *stock.ValuationService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(ledgerService *stock.LedgerService, valuationService *stock.ValuationService) *StockHandler {
	return &StockHandler{
		ledgerService:    ledgerService,
		valuationService: valuationService,
	}
}

// PostMovementRequest is the request body for posting a movement.
// For ADJUSTMENT the quantity is the counted actual, not a delta.
type PostMovementRequest struct {
	VariantID      string   `json:"variant_id" binding:"required,uuid"`
	WarehouseID    string   `json:"warehouse_id" binding:"required,uuid"`
	Type           string   `json:"type" binding:"required,oneof=RECEIPT ISSUE TRANSFER ADJUSTMENT"`
	Quantity       float64  `json:"quantity" binding:"gte=0"`
	UnitCost       *float64 `json:"unit_cost,omitempty"`
	SourceLocation *string  `json:"source_location,omitempty" binding:"omitempty,uuid"`
	DestLocation   *string  `json:"dest_location,omitempty" binding:"omitempty,uuid"`
	BatchID        *string  `json:"batch_id,omitempty" binding:"omitempty,uuid"`
	ReferenceID    string   `json:"reference_id" binding:"required"`
	Reason         string   `json:"reason,omitempty"`
	CostingMethod  string   `json:"costing_method,omitempty" binding:"omitempty,oneof=FIFO LIFO"`

	// Receipts only; backdates the cost layer to the physical arrival time
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

// MovementResponse represents a posted movement in API responses
type MovementResponse struct {
	MovementID  string  `json:"movement_id"`
	Type        string  `json:"type"`
	Quantity    string  `json:"quantity"`
	TotalCost   string  `json:"total_cost"`
	ReferenceID string  `json:"reference_id"`
	OnHand      string  `json:"on_hand"`
	PostedAt    string  `json:"posted_at"`
	UnitCost    *string `json:"unit_cost,omitempty"`
}

// PostMovement posts a stock movement
func (h *StockHandler) PostMovement(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req PostMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cmd := stock.PostMovementCommand{
		TenantID:      tenantID,
		VariantID:     uuid.MustParse(req.VariantID),
		WarehouseID:   uuid.MustParse(req.WarehouseID),
		Type:          ledger.MovementType(req.Type),
		Quantity:      decimal.NewFromFloat(req.Quantity),
		ReferenceID:   req.ReferenceID,
		Reason:        req.Reason,
		CostingMethod: valuation.CostingMethod(req.CostingMethod),
		ReceivedAt:    req.ReceivedAt,
	}
	if req.UnitCost != nil {
		unitCost := decimal.NewFromFloat(*req.UnitCost)
		cmd.UnitCost = &unitCost
	}
	if req.SourceLocation != nil {
		id := uuid.MustParse(*req.SourceLocation)
		cmd.SourceLocation = &id
	}
	if req.DestLocation != nil {
		id := uuid.MustParse(*req.DestLocation)
		cmd.DestLocation = &id
	}
	if req.BatchID != nil {
		id := uuid.MustParse(*req.BatchID)
		cmd.BatchID = &id
	}

	result, err := h.ledgerService.PostMovement(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toMovementResponse(result))
}

func toMovementResponse(result *stock.MovementResult) MovementResponse {
	resp := MovementResponse{
		MovementID:  result.Movement.ID.String(),
		Type:        result.Movement.Type.String(),
		Quantity:    result.Movement.Quantity.String(),
		TotalCost:   result.Movement.TotalCost.String(),
		ReferenceID: result.Movement.ReferenceID,
		OnHand:      result.OnHand.String(),
		PostedAt:    result.Movement.PostedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if result.Movement.UnitCost != nil {
		unitCost := result.Movement.UnitCost.String()
		resp.UnitCost = &unitCost
	}
	return resp
}

// OnHandResponse reports on-hand quantity for a variant
type OnHandResponse struct {
	VariantID   string `json:"variant_id"`
	WarehouseID string `json:"warehouse_id"`
	OnHand      string `json:"on_hand"`
}

// GetOnHand returns the on-hand quantity for a variant in a warehouse
func (h *StockHandler) GetOnHand(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	query, ok := h.parseOnHandQuery(c)
	if !ok {
		return
	}

	onHand, err := h.ledgerService.GetOnHand(c.Request.Context(), tenantID, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, OnHandResponse{
		VariantID:   query.VariantID.String(),
		WarehouseID: query.WarehouseID.String(),
		OnHand:      onHand.String(),
	})
}

// StockValueResponse reports the valued stock for a variant
type StockValueResponse struct {
	VariantID               string `json:"variant_id"`
	WarehouseID             string `json:"warehouse_id"`
	Quantity                string `json:"quantity"`
	Value                   string `json:"value"`
	WeightedAverageUnitCost string `json:"weighted_average_unit_cost"`
}

// GetValue returns the current inventory value for a variant in a warehouse
func (h *StockHandler) GetValue(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	variantID, warehouseID, ok := h.parseVariantWarehouse(c)
	if !ok {
		return
	}

	value, err := h.valuationService.GetTotalValue(c.Request.Context(), tenantID, variantID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, StockValueResponse{
		VariantID:               variantID.String(),
		WarehouseID:             warehouseID.String(),
		Quantity:                value.Quantity.String(),
		Value:                   value.Value.String(),
		WeightedAverageUnitCost: value.WeightedAverageUnitCost.String(),
	})
}

// CostLayerResponse represents one cost layer in API responses
type CostLayerResponse struct {
	ID                string `json:"id"`
	QuantityOriginal  string `json:"quantity_original"`
	QuantityRemaining string `json:"quantity_remaining"`
	UnitCost          string `json:"unit_cost"`
	ReceivedAt        string `json:"received_at"`
}

// GetLayers returns the cost layers for a variant in a warehouse
func (h *StockHandler) GetLayers(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	variantID, warehouseID, ok := h.parseVariantWarehouse(c)
	if !ok {
		return
	}

	layers, err := h.valuationService.GetLayers(c.Request.Context(), tenantID, variantID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]CostLayerResponse, 0, len(layers))
	for i := range layers {
		resp = append(resp, CostLayerResponse{
			ID:                layers[i].ID.String(),
			QuantityOriginal:  layers[i].QuantityOriginal.String(),
			QuantityRemaining: layers[i].QuantityRemaining.String(),
			UnitCost:          layers[i].UnitCost.String(),
			ReceivedAt:        layers[i].ReceivedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	h.Success(c, resp)
}

// ReconciliationResponse cross-checks the quantity views of one variant
type ReconciliationResponse struct {
	VariantID     string `json:"variant_id"`
	WarehouseID   string `json:"warehouse_id"`
	LineQuantity  string `json:"line_quantity"`
	MovementNet   string `json:"movement_net"`
	LayerQuantity string `json:"layer_quantity"`
	Consistent    bool   `json:"consistent"`
}

// Reconcile cross-checks stock lines against movement history and cost layers
func (h *StockHandler) Reconcile(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	variantID, warehouseID, ok := h.parseVariantWarehouse(c)
	if !ok {
		return
	}

	report, err := h.valuationService.Reconcile(c.Request.Context(), tenantID, variantID, warehouseID)
	if report == nil && err != nil {
		h.HandleError(c, err)
		return
	}

	// An inconsistent report is still returned; the consistent flag carries
	// the verdict.
	h.Success(c, ReconciliationResponse{
		VariantID:     report.VariantID.String(),
		WarehouseID:   report.WarehouseID.String(),
		LineQuantity:  report.LineQuantity.String(),
		MovementNet:   report.MovementNet.String(),
		LayerQuantity: report.LayerQuantity.String(),
		Consistent:    report.Consistent,
	})
}

// GetMovements returns movements posted for a reference document
func (h *StockHandler) GetMovements(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	referenceID := c.Query("reference_id")
	if referenceID == "" {
		h.BadRequest(c, "reference_id is required")
		return
	}

	movements, err := h.ledgerService.GetMovementsByReference(c.Request.Context(), tenantID, referenceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, movements)
}

// parseVariantWarehouse binds the variant_id and warehouse_id query params
func (h *StockHandler) parseVariantWarehouse(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	variantID, err := uuid.Parse(c.Query("variant_id"))
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return uuid.Nil, uuid.Nil, false
	}
	warehouseID, err := uuid.Parse(c.Query("warehouse_id"))
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return variantID, warehouseID, true
}

// parseOnHandQuery binds required and optional narrowing query params
func (h *StockHandler) parseOnHandQuery(c *gin.Context) (stock.OnHandQuery, bool) {
	variantID, warehouseID, ok := h.parseVariantWarehouse(c)
	if !ok {
		return stock.OnHandQuery{}, false
	}

	query := stock.OnHandQuery{VariantID: variantID, WarehouseID: warehouseID}
	if raw := c.Query("location_id"); raw != "" {
		locationID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid location ID format")
			return stock.OnHandQuery{}, false
		}
		query.LocationID = &locationID
	}
	if raw := c.Query("batch_id"); raw != "" {
		batchID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid batch ID format")
			return stock.OnHandQuery{}, false
		}
		query.BatchID = &batchID
	}
	return query, true
}
