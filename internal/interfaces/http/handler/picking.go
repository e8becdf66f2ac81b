package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/application/stock"
	"github.com/wms/backend/internal/domain/picking"
	"github.com/wms/backend/internal/domain/valuation"
)

// PickingHandler handles picking list API endpoints
type PickingHandler struct {
	BaseHandler
	pickingService *stock.PickingService
}

// NewPickingHandler creates a new PickingHandler
func NewPickingHandler(pickingService *stock.PickingService) *PickingHandler {
	return &PickingHandler{pickingService: pickingService}
}

// LineRequestDTO targets a specific stock line in explicit mode
type LineRequestDTO struct {
	LineID   string  `json:"line_id" binding:"required,uuid"`
	Quantity float64 `json:"quantity,omitempty" binding:"omitempty,gte=0"`
}

// DemandDTO is one variant demand on a picking list request
type DemandDTO struct {
	VariantID    string           `json:"variant_id" binding:"required,uuid"`
	Quantity     float64          `json:"quantity" binding:"required,gt=0"`
	LineRequests []LineRequestDTO `json:"line_requests,omitempty" binding:"omitempty,dive"`
}

// CreatePickingListRequest is the request body for creating a picking list
type CreatePickingListRequest struct {
	WarehouseID string      `json:"warehouse_id" binding:"required,uuid"`
	ReferenceID string      `json:"reference_id" binding:"required"`
	Mode        string      `json:"mode,omitempty" binding:"omitempty,oneof=AUTO_REMAINING EXPLICIT"`
	Demands     []DemandDTO `json:"demands" binding:"required,min=1,dive"`
}

// PickingTaskResponse represents one picking task in API responses
type PickingTaskResponse struct {
	ID                string  `json:"id"`
	VariantID         string  `json:"variant_id"`
	LocationID        string  `json:"location_id"`
	BatchID           *string `json:"batch_id,omitempty"`
	RequestedQuantity string  `json:"requested_quantity"`
	PickedQuantity    string  `json:"picked_quantity"`
	Status            string  `json:"status"`
}

// PickingListResponse represents a picking list with its tasks
type PickingListResponse struct {
	ID          string                `json:"id"`
	WarehouseID string                `json:"warehouse_id"`
	ReferenceID string                `json:"reference_id"`
	Status      string                `json:"status"`
	AssigneeID  *string               `json:"assignee_id,omitempty"`
	Tasks       []PickingTaskResponse `json:"tasks"`
	CompletedAt *string               `json:"completed_at,omitempty"`
}

// ShortfallResponse reports the unallocated remainder of one demand
type ShortfallResponse struct {
	VariantID string `json:"variant_id"`
	Quantity  string `json:"quantity"`
}

// CreatePickingListResponse is the outcome of creating a picking list
type CreatePickingListResponse struct {
	List           PickingListResponse `json:"list"`
	Shortfalls     []ShortfallResponse `json:"shortfalls"`
	FullyAllocated bool                `json:"fully_allocated"`
}

// CreatePickingList allocates stock for the demanded variants and creates a list
func (h *PickingHandler) CreatePickingList(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreatePickingListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	demands := make([]stock.DemandLine, 0, len(req.Demands))
	for _, d := range req.Demands {
		demand := stock.DemandLine{
			VariantID: uuid.MustParse(d.VariantID),
			Quantity:  decimal.NewFromFloat(d.Quantity),
		}
		for _, lr := range d.LineRequests {
			demand.LineRequests = append(demand.LineRequests, picking.LineRequest{
				LineID:   uuid.MustParse(lr.LineID),
				Quantity: decimal.NewFromFloat(lr.Quantity),
			})
		}
		demands = append(demands, demand)
	}

	result, err := h.pickingService.CreatePickingList(c.Request.Context(), stock.CreatePickingListCommand{
		TenantID:    tenantID,
		WarehouseID: uuid.MustParse(req.WarehouseID),
		ReferenceID: req.ReferenceID,
		Mode:        picking.AllocationMode(req.Mode),
		Demands:     demands,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := CreatePickingListResponse{
		List:           toPickingListResponse(result.List),
		Shortfalls:     make([]ShortfallResponse, 0, len(result.Shortfalls)),
		FullyAllocated: result.FullyAllocated,
	}
	for _, sf := range result.Shortfalls {
		resp.Shortfalls = append(resp.Shortfalls, ShortfallResponse{
			VariantID: sf.VariantID.String(),
			Quantity:  sf.Quantity.String(),
		})
	}

	h.Created(c, resp)
}

// GetPickingList returns a picking list with its tasks
func (h *PickingHandler) GetPickingList(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	listID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid picking list ID format")
		return
	}

	list, err := h.pickingService.GetPickingList(c.Request.Context(), tenantID, listID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPickingListResponse(list))
}

// AssignRequest is the request body for assigning a picker
type AssignRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required,uuid"`
}

// AssignPickingList assigns a picker to the list
func (h *PickingHandler) AssignPickingList(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	listID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid picking list ID format")
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	list, err := h.pickingService.AssignPickingList(c.Request.Context(), tenantID, listID, uuid.MustParse(req.AssigneeID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPickingListResponse(list))
}

// UpdateTaskRequest records the picked quantity on one task
type UpdateTaskRequest struct {
	PickedQuantity float64 `json:"picked_quantity" binding:"gte=0"`
}

// UpdateTask records the picked quantity on a single picking task
func (h *PickingHandler) UpdateTask(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	task, err := h.pickingService.UpdateTask(c.Request.Context(), stock.UpdateTaskCommand{
		TenantID:       tenantID,
		TaskID:         taskID,
		PickedQuantity: decimal.NewFromFloat(req.PickedQuantity),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPickingTaskResponse(task))
}

// CompletePickingListRequest is the optional request body for completion
type CompletePickingListRequest struct {
	CostingMethod string `json:"costing_method,omitempty" binding:"omitempty,oneof=FIFO LIFO"`
}

// CompletePickingList finalizes the list and posts issue movements for the picks
func (h *PickingHandler) CompletePickingList(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	listID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid picking list ID format")
		return
	}

	// Body is optional; an empty body completes with the default costing method
	var req CompletePickingListRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	list, err := h.pickingService.CompletePickingList(c.Request.Context(), stock.CompletePickingListCommand{
		TenantID:      tenantID,
		ListID:        listID,
		CostingMethod: valuation.CostingMethod(req.CostingMethod),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPickingListResponse(list))
}

// CancelPickingList abandons an open list without touching the ledger
func (h *PickingHandler) CancelPickingList(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	listID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid picking list ID format")
		return
	}

	list, err := h.pickingService.CancelPickingList(c.Request.Context(), tenantID, listID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPickingListResponse(list))
}

func toPickingListResponse(list *picking.PickingList) PickingListResponse {
	resp := PickingListResponse{
		ID:          list.ID.String(),
		WarehouseID: list.WarehouseID.String(),
		ReferenceID: list.ReferenceID,
		Status:      list.Status.String(),
		Tasks:       make([]PickingTaskResponse, 0, len(list.Tasks)),
	}
	if list.AssigneeID != nil {
		assignee := list.AssigneeID.String()
		resp.AssigneeID = &assignee
	}
	if list.CompletedAt != nil {
		completedAt := list.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.CompletedAt = &completedAt
	}
	for i := range list.Tasks {
		resp.Tasks = append(resp.Tasks, toPickingTaskResponse(&list.Tasks[i]))
	}
	return resp
}

func toPickingTaskResponse(task *picking.PickingTask) PickingTaskResponse {
	resp := PickingTaskResponse{
		ID:                task.ID.String(),
		VariantID:         task.VariantID.String(),
		LocationID:        task.LocationID.String(),
		RequestedQuantity: task.RequestedQuantity.String(),
		PickedQuantity:    task.PickedQuantity.String(),
		Status:            task.Status.String(),
	}
	if task.BatchID != nil {
		batchID := task.BatchID.String()
		resp.BatchID = &batchID
	}
	return resp
}
