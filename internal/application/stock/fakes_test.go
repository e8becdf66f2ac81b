package stock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/picking"
	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/valuation"
)

// memEventPublisher records published events for assertions
type memEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *memEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *memEventPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

// memLocker serializes on a per-key mutex without timeouts
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

// memStockLineRepo is an in-memory StockLineRepository
type memStockLineRepo struct {
	mu    sync.Mutex
	lines map[uuid.UUID]*ledger.StockLine
}

func newMemStockLineRepo() *memStockLineRepo {
	return &memStockLineRepo{lines: make(map[uuid.UUID]*ledger.StockLine)}
}

func cloneLine(l *ledger.StockLine) *ledger.StockLine {
	c := *l
	return &c
}

func (r *memStockLineRepo) matches(l *ledger.StockLine, tenantID uuid.UUID, q ledger.StockLineQuery) bool {
	if l.TenantID != tenantID || l.VariantID != q.VariantID || l.WarehouseID != q.WarehouseID {
		return false
	}
	if q.LocationID != nil && (l.LocationID == nil || *l.LocationID != *q.LocationID) {
		return false
	}
	if q.BatchID != nil && (l.BatchID == nil || *l.BatchID != *q.BatchID) {
		return false
	}
	return true
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *memStockLineRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*ledger.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	if !ok || l.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return cloneLine(l), nil
}

func (r *memStockLineRepo) FindByKey(_ context.Context, tenantID uuid.UUID, q ledger.StockLineQuery) (*ledger.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.VariantID == q.VariantID && l.WarehouseID == q.WarehouseID &&
			uuidPtrEqual(l.LocationID, q.LocationID) && uuidPtrEqual(l.BatchID, q.BatchID) {
			return cloneLine(l), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memStockLineRepo) FindMatching(_ context.Context, tenantID uuid.UUID, q ledger.StockLineQuery) ([]ledger.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.StockLine, 0)
	for _, l := range r.lines {
		if r.matches(l, tenantID, q) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memStockLineRepo) FindPickable(_ context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]ledger.StockLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.StockLine, 0)
	for _, l := range r.lines {
		if l.TenantID == tenantID && l.VariantID == variantID && l.WarehouseID == warehouseID &&
			l.IsLocated() && l.HasStock() {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LocationID.String() < out[j].LocationID.String()
	})
	return out, nil
}

func (r *memStockLineRepo) SumOnHand(_ context.Context, tenantID uuid.UUID, q ledger.StockLineQuery) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, l := range r.lines {
		if r.matches(l, tenantID, q) {
			total = total.Add(l.Quantity)
		}
	}
	return total, nil
}

func (r *memStockLineRepo) Save(_ context.Context, line *ledger.StockLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[line.ID] = cloneLine(line)
	return nil
}

func (r *memStockLineRepo) SaveWithLock(_ context.Context, line *ledger.StockLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.lines[line.ID]
	if ok && existing.Version >= line.Version {
		return shared.ErrConcurrencyConflict
	}
	r.lines[line.ID] = cloneLine(line)
	return nil
}

func (r *memStockLineRepo) GetOrCreate(ctx context.Context, tenantID uuid.UUID, q ledger.StockLineQuery) (*ledger.StockLine, error) {
	if line, err := r.FindByKey(ctx, tenantID, q); err == nil {
		return line, nil
	}
	line, err := ledger.NewStockLine(tenantID, q.VariantID, q.WarehouseID, q.LocationID, q.BatchID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.lines[line.ID] = cloneLine(line)
	r.mu.Unlock()
	return line, nil
}

var _ ledger.StockLineRepository = (*memStockLineRepo)(nil)

// memMovementRepo is an in-memory append-only MovementRepository
type memMovementRepo struct {
	mu        sync.Mutex
	movements []ledger.Movement
}

func newMemMovementRepo() *memMovementRepo {
	return &memMovementRepo{movements: make([]ledger.Movement, 0)}
}

func (r *memMovementRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*ledger.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.movements {
		if r.movements[i].ID == id && r.movements[i].TenantID == tenantID {
			m := r.movements[i]
			return &m, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memMovementRepo) FindByReference(_ context.Context, tenantID uuid.UUID, referenceID string) ([]ledger.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.Movement, 0)
	for _, m := range r.movements {
		if m.TenantID == tenantID && m.ReferenceID == referenceID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMovementRepo) FindByVariant(_ context.Context, tenantID, variantID, warehouseID uuid.UUID, _ shared.Filter) ([]ledger.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.Movement, 0)
	for _, m := range r.movements {
		if m.TenantID == tenantID && m.VariantID == variantID && m.WarehouseID == warehouseID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMovementRepo) FindByDateRange(_ context.Context, tenantID uuid.UUID, start, end time.Time, _ shared.Filter) ([]ledger.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.Movement, 0)
	for _, m := range r.movements {
		if m.TenantID == tenantID && !m.PostedAt.Before(start) && !m.PostedAt.After(end) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMovementRepo) Create(_ context.Context, movement *ledger.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *movement)
	return nil
}

func (r *memMovementRepo) SumSignedQuantity(_ context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for i := range r.movements {
		m := r.movements[i]
		if m.TenantID == tenantID && m.VariantID == variantID && m.WarehouseID == warehouseID {
			total = total.Add(m.SignedQuantity())
		}
	}
	return total, nil
}

var _ ledger.MovementRepository = (*memMovementRepo)(nil)

// memCostLayerRepo is an in-memory CostLayerRepository
type memCostLayerRepo struct {
	mu     sync.Mutex
	layers map[uuid.UUID]*valuation.CostLayer
}

func newMemCostLayerRepo() *memCostLayerRepo {
	return &memCostLayerRepo{layers: make(map[uuid.UUID]*valuation.CostLayer)}
}

func cloneLayer(l *valuation.CostLayer) *valuation.CostLayer {
	c := *l
	return &c
}

func (r *memCostLayerRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*valuation.CostLayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.layers[id]
	if !ok || l.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return cloneLayer(l), nil
}

func (r *memCostLayerRepo) findLayers(tenantID, variantID, warehouseID uuid.UUID, openOnly bool) []valuation.CostLayer {
	out := make([]valuation.CostLayer, 0)
	for _, l := range r.layers {
		if l.TenantID != tenantID || l.VariantID != variantID || l.WarehouseID != warehouseID {
			continue
		}
		if openOnly && !l.HasRemaining() {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *memCostLayerRepo) FindOpenLayers(_ context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]valuation.CostLayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLayers(tenantID, variantID, warehouseID, true), nil
}

func (r *memCostLayerRepo) FindAllLayers(_ context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]valuation.CostLayer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLayers(tenantID, variantID, warehouseID, false), nil
}

func (r *memCostLayerRepo) SumRemainingQuantity(_ context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, l := range r.findLayers(tenantID, variantID, warehouseID, true) {
		total = total.Add(l.QuantityRemaining)
	}
	return total, nil
}

func (r *memCostLayerRepo) SumRemainingValue(_ context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, l := range r.findLayers(tenantID, variantID, warehouseID, true) {
		total = total.Add(l.RemainingValue())
	}
	return total, nil
}

func (r *memCostLayerRepo) Save(_ context.Context, layer *valuation.CostLayer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers[layer.ID] = cloneLayer(layer)
	return nil
}

func (r *memCostLayerRepo) SaveWithLock(_ context.Context, layer *valuation.CostLayer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.layers[layer.ID]
	if ok && existing.Version >= layer.Version {
		return shared.ErrConcurrencyConflict
	}
	r.layers[layer.ID] = cloneLayer(layer)
	return nil
}

func (r *memCostLayerRepo) SaveAll(ctx context.Context, layers []*valuation.CostLayer) error {
	for _, l := range layers {
		if err := r.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

var _ valuation.CostLayerRepository = (*memCostLayerRepo)(nil)

// memReservationRepo is an in-memory reservation.Repository
type memReservationRepo struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*reservation.Reservation
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{reservations: make(map[uuid.UUID]*reservation.Reservation)}
}

func cloneReservation(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	return &c
}

func (r *memReservationRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*reservation.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return cloneReservation(res), nil
}

func (r *memReservationRepo) FindByReference(_ context.Context, tenantID uuid.UUID, referenceID string) ([]reservation.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reservation.Reservation, 0)
	for _, res := range r.reservations {
		if res.TenantID == tenantID && res.ReferenceID == referenceID {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindHeld(_ context.Context, tenantID, variantID, warehouseID uuid.UUID) ([]reservation.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reservation.Reservation, 0)
	for _, res := range r.reservations {
		if res.TenantID == tenantID && res.VariantID == variantID && res.WarehouseID == warehouseID && res.HoldsStock() {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindExpired(_ context.Context, cutoff time.Time, limit int) ([]reservation.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reservation.Reservation, 0)
	for _, res := range r.reservations {
		if res.IsExpiredAt(cutoff) {
			out = append(out, *res)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memReservationRepo) SumHeldQuantity(_ context.Context, tenantID, variantID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, res := range r.reservations {
		if res.TenantID == tenantID && res.VariantID == variantID && res.WarehouseID == warehouseID && res.HoldsStock() {
			total = total.Add(res.Quantity)
		}
	}
	return total, nil
}

func (r *memReservationRepo) Save(_ context.Context, res *reservation.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[res.ID] = cloneReservation(res)
	return nil
}

func (r *memReservationRepo) SaveWithLock(_ context.Context, res *reservation.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.reservations[res.ID]
	if ok && existing.Version >= res.Version {
		return shared.ErrConcurrencyConflict
	}
	r.reservations[res.ID] = cloneReservation(res)
	return nil
}

var _ reservation.Repository = (*memReservationRepo)(nil)

// memPickingRepo is an in-memory picking.Repository
type memPickingRepo struct {
	mu    sync.Mutex
	lists map[uuid.UUID]*picking.PickingList
}

func newMemPickingRepo() *memPickingRepo {
	return &memPickingRepo{lists: make(map[uuid.UUID]*picking.PickingList)}
}

func clonePickingList(l *picking.PickingList) *picking.PickingList {
	c := *l
	c.Tasks = make([]picking.PickingTask, len(l.Tasks))
	copy(c.Tasks, l.Tasks)
	return &c
}

func (r *memPickingRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*picking.PickingList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lists[id]
	if !ok || l.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return clonePickingList(l), nil
}

func (r *memPickingRepo) FindByReference(_ context.Context, tenantID uuid.UUID, referenceID string) ([]picking.PickingList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]picking.PickingList, 0)
	for _, l := range r.lists {
		if l.TenantID == tenantID && l.ReferenceID == referenceID {
			out = append(out, *clonePickingList(l))
		}
	}
	return out, nil
}

func (r *memPickingRepo) FindOpen(_ context.Context, tenantID, warehouseID uuid.UUID) ([]picking.PickingList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]picking.PickingList, 0)
	for _, l := range r.lists {
		if l.TenantID == tenantID && l.WarehouseID == warehouseID && !l.Status.IsTerminal() {
			out = append(out, *clonePickingList(l))
		}
	}
	return out, nil
}

func (r *memPickingRepo) FindTaskByID(_ context.Context, tenantID, taskID uuid.UUID) (*picking.PickingTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lists {
		if l.TenantID != tenantID {
			continue
		}
		for i := range l.Tasks {
			if l.Tasks[i].ID == taskID {
				t := l.Tasks[i]
				return &t, nil
			}
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPickingRepo) Save(_ context.Context, list *picking.PickingList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[list.ID] = clonePickingList(list)
	return nil
}

func (r *memPickingRepo) SaveWithLock(_ context.Context, list *picking.PickingList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.lists[list.ID]
	if ok && existing.Version >= list.Version {
		return shared.ErrConcurrencyConflict
	}
	r.lists[list.ID] = clonePickingList(list)
	return nil
}

func (r *memPickingRepo) SaveTask(_ context.Context, task *picking.PickingTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lists[task.PickingListID]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range l.Tasks {
		if l.Tasks[i].ID == task.ID {
			l.Tasks[i] = *task
			return nil
		}
	}
	return shared.ErrNotFound
}

var _ picking.Repository = (*memPickingRepo)(nil)

// testEnv wires the services over in-memory repositories
type testEnv struct {
	lines        *memStockLineRepo
	movements    *memMovementRepo
	layers       *memCostLayerRepo
	reservations *memReservationRepo
	picking      *memPickingRepo
	events       *memEventPublisher
	ledger       *LedgerService
	valuationSvc *ValuationService
	reservation  *ReservationService
	pickingSvc   *PickingService
	expiry       *ReservationExpiryService
}

func zapNop() *zap.Logger {
	return zap.NewNop()
}

func newTestEnv(defaultTTL time.Duration) *testEnv {
	env := &testEnv{
		lines:        newMemStockLineRepo(),
		movements:    newMemMovementRepo(),
		layers:       newMemCostLayerRepo(),
		reservations: newMemReservationRepo(),
		picking:      newMemPickingRepo(),
		events:       &memEventPublisher{},
	}
	scope := NewNoOpTransactionScope(env.lines, env.movements, env.layers, env.reservations, env.picking)
	locker := newMemLocker()
	logger := zapNop()

	env.ledger = NewLedgerService(env.lines, env.movements, env.layers, scope, locker, env.events, logger, valuation.CostingMethodFIFO)
	env.valuationSvc = NewValuationService(env.layers, env.lines, env.movements, logger)
	env.reservation = NewReservationService(env.reservations, env.lines, scope, locker, env.events, logger, defaultTTL)
	env.pickingSvc = NewPickingService(env.picking, env.lines, env.ledger, env.reservation, scope, locker, logger)
	env.expiry = NewReservationExpiryService(env.reservations, env.events, logger, 100)
	return env
}
