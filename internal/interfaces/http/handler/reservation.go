package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/application/stock"
	"github.com/wms/backend/internal/domain/reservation"
)

// ReservationHandler handles reservation API endpoints
type ReservationHandler struct {
	BaseHandler
	reservationService *stock.ReservationService
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservationService *stock.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// ReserveRequest is the request body for creating a reservation
type ReserveRequest struct {
	VariantID   string  `json:"variant_id" binding:"required,uuid"`
	WarehouseID string  `json:"warehouse_id" binding:"required,uuid"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	ReferenceID string  `json:"reference_id" binding:"required"`
	Priority    string  `json:"priority,omitempty" binding:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	TTLSeconds  int     `json:"ttl_seconds,omitempty" binding:"omitempty,gte=0"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID          string  `json:"id"`
	VariantID   string  `json:"variant_id"`
	WarehouseID string  `json:"warehouse_id"`
	Quantity    string  `json:"quantity"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	ReferenceID string  `json:"reference_id"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
}

// Reserve creates a reservation against available-to-promise
func (h *ReservationHandler) Reserve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	res, err := h.reservationService.Reserve(c.Request.Context(), stock.ReserveCommand{
		TenantID:    tenantID,
		VariantID:   uuid.MustParse(req.VariantID),
		WarehouseID: uuid.MustParse(req.WarehouseID),
		Quantity:    decimal.NewFromFloat(req.Quantity),
		ReferenceID: req.ReferenceID,
		Priority:    reservation.Priority(req.Priority),
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toReservationResponse(res))
}

func toReservationResponse(res *reservation.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:          res.ID.String(),
		VariantID:   res.VariantID.String(),
		WarehouseID: res.WarehouseID.String(),
		Quantity:    res.Quantity.String(),
		Status:      res.Status.String(),
		Priority:    res.Priority.String(),
		ReferenceID: res.ReferenceID,
	}
	if res.ExpiresAt != nil {
		expiresAt := res.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// ATPResponse reports availability for a variant in a warehouse
type ATPResponse struct {
	VariantID          string `json:"variant_id"`
	WarehouseID        string `json:"warehouse_id"`
	OnHand             string `json:"on_hand"`
	Reserved           string `json:"reserved"`
	AvailableToPromise string `json:"available_to_promise"`
}

// GetATP returns the available-to-promise quantity for a variant
func (h *ReservationHandler) GetATP(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	variantID, err := uuid.Parse(c.Query("variant_id"))
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return
	}
	warehouseID, err := uuid.Parse(c.Query("warehouse_id"))
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	atp, err := h.reservationService.GetAvailableToPromise(c.Request.Context(), tenantID, variantID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ATPResponse{
		VariantID:          variantID.String(),
		WarehouseID:        warehouseID.String(),
		OnHand:             atp.OnHand.String(),
		Reserved:           atp.Reserved.String(),
		AvailableToPromise: atp.AvailableToPromise.String(),
	})
}

// Release releases a single reservation by ID
func (h *ReservationHandler) Release(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	if err := h.reservationService.Release(c.Request.Context(), tenantID, reservationID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ReleaseByReferenceResponse reports how many holds were released
type ReleaseByReferenceResponse struct {
	ReferenceID string `json:"reference_id"`
	Released    int    `json:"released"`
}

// ReleaseByReference releases all held reservations for a reference document
func (h *ReservationHandler) ReleaseByReference(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	referenceID := c.Param("referenceId")
	if referenceID == "" {
		h.BadRequest(c, "Reference ID is required")
		return
	}

	released, err := h.reservationService.ReleaseByReference(c.Request.Context(), tenantID, referenceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ReleaseByReferenceResponse{
		ReferenceID: referenceID,
		Released:    released,
	})
}
