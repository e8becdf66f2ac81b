package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/application/stock"
	"github.com/wms/backend/internal/domain/valuation"
	"github.com/wms/backend/internal/infrastructure/event"
	"github.com/wms/backend/internal/infrastructure/locking"
	"github.com/wms/backend/internal/infrastructure/persistence"
	"github.com/wms/backend/internal/interfaces/http/handler"
	"github.com/wms/backend/internal/interfaces/http/middleware"
	"github.com/wms/backend/internal/interfaces/http/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// StockTestServer wires the full stock API over a test database
type StockTestServer struct {
	Engine *gin.Engine
}

// NewStockTestServer builds the same stack main assembles, minus the listener
func NewStockTestServer(t *testing.T) *StockTestServer {
	t.Helper()

	db := NewTestDB(t)
	logger := zap.NewNop()

	stockLineRepo := persistence.NewGormStockLineRepository(db)
	movementRepo := persistence.NewGormMovementRepository(db)
	costLayerRepo := persistence.NewGormCostLayerRepository(db)
	reservationRepo := persistence.NewGormReservationRepository(db)
	pickingRepo := persistence.NewGormPickingRepository(db)
	txScope := persistence.NewGormTransactionScope(db)
	locker := locking.NewKeyedMutex(5 * time.Second)
	eventBus := event.NewInMemoryEventBus(logger)

	ledgerService := stock.NewLedgerService(
		stockLineRepo, movementRepo, costLayerRepo,
		txScope, locker, eventBus, logger,
		valuation.CostingMethodFIFO,
	)
	valuationService := stock.NewValuationService(costLayerRepo, stockLineRepo, movementRepo, logger)
	reservationService := stock.NewReservationService(
		reservationRepo, stockLineRepo,
		txScope, locker, eventBus, logger, 0,
	)
	pickingService := stock.NewPickingService(
		pickingRepo, stockLineRepo,
		ledgerService, reservationService,
		txScope, locker, logger,
	)

	stockHandler := handler.NewStockHandler(ledgerService, valuationService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	pickingHandler := handler.NewPickingHandler(pickingService)

	engine := gin.New()
	engine.Use(middleware.RequestID())

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.Tenant())

	stockRoutes := router.NewDomainGroup("stock", "/stock")
	stockRoutes.POST("/movements", stockHandler.PostMovement)
	stockRoutes.GET("/movements", stockHandler.GetMovements)
	stockRoutes.GET("/on-hand", stockHandler.GetOnHand)
	stockRoutes.GET("/value", stockHandler.GetValue)
	stockRoutes.GET("/layers", stockHandler.GetLayers)
	stockRoutes.GET("/reconcile", stockHandler.Reconcile)
	stockRoutes.GET("/atp", reservationHandler.GetATP)
	r.Register(stockRoutes)

	reservationRoutes := router.NewDomainGroup("reservations", "/reservations")
	reservationRoutes.POST("", reservationHandler.Reserve)
	reservationRoutes.DELETE("/:id", reservationHandler.Release)
	reservationRoutes.DELETE("/by-reference/:referenceId", reservationHandler.ReleaseByReference)
	r.Register(reservationRoutes)

	pickingRoutes := router.NewDomainGroup("picking", "/picking-lists")
	pickingRoutes.POST("", pickingHandler.CreatePickingList)
	pickingRoutes.GET("/:id", pickingHandler.GetPickingList)
	pickingRoutes.POST("/:id/assign", pickingHandler.AssignPickingList)
	pickingRoutes.POST("/:id/complete", pickingHandler.CompletePickingList)
	pickingRoutes.POST("/:id/cancel", pickingHandler.CancelPickingList)
	r.Register(pickingRoutes)

	taskRoutes := router.NewDomainGroup("picking-tasks", "/picking-tasks")
	taskRoutes.PATCH("/:id", pickingHandler.UpdateTask)
	r.Register(taskRoutes)

	r.Setup()

	return &StockTestServer{Engine: engine}
}

func (s *StockTestServer) request(t *testing.T, method, path string, tenantID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != uuid.Nil {
		req.Header.Set(middleware.TenantHeader, tenantID.String())
	}
	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the data field of a success envelope into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "expected success response, got: %s", w.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestStockAPI_ReceiptToPickFlow(t *testing.T) {
	server := NewStockTestServer(t)
	tenantID := uuid.New()
	variantID := uuid.New()
	warehouseID := uuid.New()
	locationID := uuid.New()

	// Receive 10 units at 2.50
	w := server.request(t, "POST", "/api/v1/stock/movements", tenantID, map[string]any{
		"variant_id":    variantID.String(),
		"warehouse_id":  warehouseID.String(),
		"type":          "RECEIPT",
		"quantity":      10,
		"unit_cost":     2.50,
		"dest_location": locationID.String(),
		"reference_id":  "PO-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var movement handler.MovementResponse
	decodeData(t, w, &movement)
	assert.Equal(t, "RECEIPT", movement.Type)
	assert.Equal(t, "25", movement.TotalCost)
	assert.Equal(t, "10", movement.OnHand)

	// On-hand and value reflect the receipt
	w = server.request(t, "GET", "/api/v1/stock/on-hand?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var onHand handler.OnHandResponse
	decodeData(t, w, &onHand)
	assert.Equal(t, "10", onHand.OnHand)

	w = server.request(t, "GET", "/api/v1/stock/value?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var value handler.StockValueResponse
	decodeData(t, w, &value)
	assert.Equal(t, "25", value.Value)

	// Reserve 4 against ATP
	w = server.request(t, "POST", "/api/v1/reservations", tenantID, map[string]any{
		"variant_id":   variantID.String(),
		"warehouse_id": warehouseID.String(),
		"quantity":     4,
		"reference_id": "SO-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = server.request(t, "GET", "/api/v1/stock/atp?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var atp handler.ATPResponse
	decodeData(t, w, &atp)
	assert.Equal(t, "6", atp.AvailableToPromise)

	// Create a picking list for the reserved demand
	w = server.request(t, "POST", "/api/v1/picking-lists", tenantID, map[string]any{
		"warehouse_id": warehouseID.String(),
		"reference_id": "SO-1",
		"demands": []map[string]any{
			{"variant_id": variantID.String(), "quantity": 4},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created handler.CreatePickingListResponse
	decodeData(t, w, &created)
	assert.True(t, created.FullyAllocated)
	require.Len(t, created.List.Tasks, 1)
	assert.Equal(t, "4", created.List.Tasks[0].RequestedQuantity)

	// Pick the full quantity
	w = server.request(t, "PATCH", "/api/v1/picking-tasks/"+created.List.Tasks[0].ID, tenantID, map[string]any{
		"picked_quantity": 4,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var task handler.PickingTaskResponse
	decodeData(t, w, &task)
	assert.Equal(t, "COMPLETED", task.Status)

	// Complete the list; the pick becomes an issue movement and the
	// reservation for the same reference is fulfilled
	w = server.request(t, "POST", "/api/v1/picking-lists/"+created.List.ID+"/complete", tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var completed handler.PickingListResponse
	decodeData(t, w, &completed)
	assert.Equal(t, "COMPLETED", completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	w = server.request(t, "GET", "/api/v1/stock/on-hand?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &onHand)
	assert.Equal(t, "6", onHand.OnHand)

	// The fulfilled reservation no longer holds ATP
	w = server.request(t, "GET", "/api/v1/stock/atp?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &atp)
	assert.Equal(t, "6", atp.AvailableToPromise)

	// Ledger, journal and layers agree after the round trip
	w = server.request(t, "GET", "/api/v1/stock/reconcile?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report handler.ReconciliationResponse
	decodeData(t, w, &report)
	assert.True(t, report.Consistent)
	assert.Equal(t, "6", report.LineQuantity)
}

func TestStockAPI_TenantScoping(t *testing.T) {
	server := NewStockTestServer(t)
	tenantA := uuid.New()
	tenantB := uuid.New()
	variantID := uuid.New()
	warehouseID := uuid.New()

	w := server.request(t, "POST", "/api/v1/stock/movements", tenantA, map[string]any{
		"variant_id":   variantID.String(),
		"warehouse_id": warehouseID.String(),
		"type":         "RECEIPT",
		"quantity":     5,
		"unit_cost":    1.00,
		"reference_id": "PO-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	t.Run("another tenant sees no stock", func(t *testing.T) {
		w := server.request(t, "GET", "/api/v1/stock/on-hand?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), tenantB, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var onHand handler.OnHandResponse
		decodeData(t, w, &onHand)
		assert.Equal(t, "0", onHand.OnHand)
	})

	t.Run("requests without tenant are rejected", func(t *testing.T) {
		w := server.request(t, "GET", "/api/v1/stock/on-hand?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), uuid.Nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_TENANT")
	})
}

func TestStockAPI_InsufficientStock(t *testing.T) {
	server := NewStockTestServer(t)
	tenantID := uuid.New()
	variantID := uuid.New()
	warehouseID := uuid.New()

	w := server.request(t, "POST", "/api/v1/stock/movements", tenantID, map[string]any{
		"variant_id":   variantID.String(),
		"warehouse_id": warehouseID.String(),
		"type":         "RECEIPT",
		"quantity":     3,
		"unit_cost":    1.00,
		"reference_id": "PO-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	t.Run("issue beyond on-hand is rejected", func(t *testing.T) {
		w := server.request(t, "POST", "/api/v1/stock/movements", tenantID, map[string]any{
			"variant_id":   variantID.String(),
			"warehouse_id": warehouseID.String(),
			"type":         "ISSUE",
			"quantity":     5,
			"reference_id": "SO-1",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_STOCK")
	})

	t.Run("reservation beyond ATP is rejected", func(t *testing.T) {
		w := server.request(t, "POST", "/api/v1/reservations", tenantID, map[string]any{
			"variant_id":   variantID.String(),
			"warehouse_id": warehouseID.String(),
			"quantity":     4,
			"reference_id": "SO-2",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_STOCK")
	})
}

func TestStockAPI_CompletionRollsBackOnFailure(t *testing.T) {
	server := NewStockTestServer(t)
	tenantID := uuid.New()
	variantA := uuid.New()
	variantB := uuid.New()
	warehouseID := uuid.New()
	locationID := uuid.New()

	receive := func(variantID uuid.UUID) {
		w := server.request(t, "POST", "/api/v1/stock/movements", tenantID, map[string]any{
			"variant_id":    variantID.String(),
			"warehouse_id":  warehouseID.String(),
			"type":          "RECEIPT",
			"quantity":      10,
			"unit_cost":     1.00,
			"dest_location": locationID.String(),
			"reference_id":  "PO-1",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	receive(variantA)
	receive(variantB)

	w := server.request(t, "POST", "/api/v1/picking-lists", tenantID, map[string]any{
		"warehouse_id": warehouseID.String(),
		"reference_id": "SO-1",
		"demands": []map[string]any{
			{"variant_id": variantA.String(), "quantity": 6},
			{"variant_id": variantB.String(), "quantity": 6},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created handler.CreatePickingListResponse
	decodeData(t, w, &created)
	require.Len(t, created.List.Tasks, 2)

	for _, task := range created.List.Tasks {
		w = server.request(t, "PATCH", "/api/v1/picking-tasks/"+task.ID, tenantID, map[string]any{
			"picked_quantity": 6,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// Drain variant B behind the list's back so its issue must fail
	w = server.request(t, "POST", "/api/v1/stock/movements", tenantID, map[string]any{
		"variant_id":      variantB.String(),
		"warehouse_id":    warehouseID.String(),
		"type":            "ISSUE",
		"quantity":        10,
		"source_location": locationID.String(),
		"reference_id":    "SO-DRAIN",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = server.request(t, "POST", "/api/v1/picking-lists/"+created.List.ID+"/complete", tenantID, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	// The failed completion must not have issued variant A either
	onHandOf := func(variantID uuid.UUID) string {
		w := server.request(t, "GET", "/api/v1/stock/on-hand?variant_id="+variantID.String()+"&warehouse_id="+warehouseID.String(), tenantID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var onHand handler.OnHandResponse
		decodeData(t, w, &onHand)
		return onHand.OnHand
	}
	assert.Equal(t, "10", onHandOf(variantA))
	assert.Equal(t, "0", onHandOf(variantB))

	// The list stays open, so a retry after restocking can succeed
	w = server.request(t, "GET", "/api/v1/picking-lists/"+created.List.ID, tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored handler.PickingListResponse
	decodeData(t, w, &stored)
	assert.NotEqual(t, "COMPLETED", stored.Status)

	receive(variantB)
	w = server.request(t, "POST", "/api/v1/picking-lists/"+created.List.ID+"/complete", tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "4", onHandOf(variantA))
	assert.Equal(t, "4", onHandOf(variantB))
}
