package stock

import (
	"context"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/picking"
	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/valuation"
)

// TransactionScope provides transactional access to the stock repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and are committed or
// rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all stock repositories within
// a transaction. All repositories returned share the same underlying database
// transaction.
//
// Aggregate boundary notes:
//   - StockLineRepo: the StockLine aggregate. Quantity changes always pair
//     with a movement record written through MovementRepo in the same scope.
//   - CostLayerRepo: cost layers mirror receipts; an issue consumes layers in
//     the same transaction that drains the line.
//   - ReservationRepo and PickingRepo: independent aggregates that join the
//     scope when fulfillment touches the ledger.
type TransactionalRepositories interface {
	// StockLineRepo returns the stock line repository scoped to the current transaction
	StockLineRepo() ledger.StockLineRepository
	// MovementRepo returns the movement repository scoped to the current transaction
	MovementRepo() ledger.MovementRepository
	// CostLayerRepo returns the cost layer repository scoped to the current transaction
	CostLayerRepo() valuation.CostLayerRepository
	// ReservationRepo returns the reservation repository scoped to the current transaction
	ReservationRepo() reservation.Repository
	// PickingRepo returns the picking repository scoped to the current transaction
	PickingRepo() picking.Repository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	stockLineRepo   ledger.StockLineRepository
	movementRepo    ledger.MovementRepository
	costLayerRepo   valuation.CostLayerRepository
	reservationRepo reservation.Repository
	pickingRepo     picking.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(
	stockLineRepo ledger.StockLineRepository,
	movementRepo ledger.MovementRepository,
	costLayerRepo valuation.CostLayerRepository,
	reservationRepo reservation.Repository,
	pickingRepo picking.Repository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		stockLineRepo:   stockLineRepo,
		movementRepo:    movementRepo,
		costLayerRepo:   costLayerRepo,
		reservationRepo: reservationRepo,
		pickingRepo:     pickingRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// StockLineRepo returns the stock line repository
func (s *NoOpTransactionScope) StockLineRepo() ledger.StockLineRepository {
	return s.stockLineRepo
}

// MovementRepo returns the movement repository
func (s *NoOpTransactionScope) MovementRepo() ledger.MovementRepository {
	return s.movementRepo
}

// CostLayerRepo returns the cost layer repository
func (s *NoOpTransactionScope) CostLayerRepo() valuation.CostLayerRepository {
	return s.costLayerRepo
}

// ReservationRepo returns the reservation repository
func (s *NoOpTransactionScope) ReservationRepo() reservation.Repository {
	return s.reservationRepo
}

// PickingRepo returns the picking repository
func (s *NoOpTransactionScope) PickingRepo() picking.Repository {
	return s.pickingRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
