package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
)

type recordingHandler struct {
	eventTypes []string
	received   []shared.DomainEvent
	failWith   error
	panicWith  any
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	if h.failWith != nil {
		return h.failWith
	}
	h.received = append(h.received, event)
	return nil
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func newReceivedEvent(t *testing.T) *ledger.StockReceivedEvent {
	t.Helper()
	locationID := uuid.New()
	line, err := ledger.NewStockLine(uuid.New(), uuid.New(), uuid.New(), &locationID, nil)
	require.NoError(t, err)
	movement, err := ledger.NewMovement(line.TenantID, line.VariantID, line.WarehouseID,
		ledger.MovementTypeReceipt, decimal.NewFromInt(5), "PO-1")
	require.NoError(t, err)
	return ledger.NewStockReceivedEvent(line, movement)
}

func TestInMemoryEventBus_PublishToSubscribedHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{eventTypes: []string{ledger.EventTypeStockReceived}}
	bus.Subscribe(handler)

	evt := newReceivedEvent(t)
	require.NoError(t, bus.Publish(context.Background(), evt))

	require.Len(t, handler.received, 1)
	assert.Equal(t, ledger.EventTypeStockReceived, handler.received[0].EventType())
}

func TestInMemoryEventBus_TypeFiltering(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	issuedOnly := &recordingHandler{eventTypes: []string{ledger.EventTypeStockIssued}}
	bus.Subscribe(issuedOnly)

	require.NoError(t, bus.Publish(context.Background(), newReceivedEvent(t)))

	assert.Empty(t, issuedOnly.received)
}

func TestInMemoryEventBus_WildcardHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	all := &recordingHandler{}
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(), newReceivedEvent(t)))

	assert.Len(t, all.received, 1)
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{
		eventTypes: []string{ledger.EventTypeStockReceived},
		failWith:   errors.New("handler broke"),
	}
	healthy := &recordingHandler{eventTypes: []string{ledger.EventTypeStockReceived}}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newReceivedEvent(t)))

	assert.Len(t, healthy.received, 1)
}

func TestInMemoryEventBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	panicking := &recordingHandler{
		eventTypes: []string{ledger.EventTypeStockReceived},
		panicWith:  "boom",
	}
	healthy := &recordingHandler{eventTypes: []string{ledger.EventTypeStockReceived}}
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newReceivedEvent(t)))

	assert.Len(t, healthy.received, 1)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{eventTypes: []string{ledger.EventTypeStockReceived}}
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newReceivedEvent(t)))

	assert.Empty(t, handler.received)
}
