package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/wms/backend/internal/application/stock"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/picking"
	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/valuation"
)

// GormTransactionScope implements stock.TransactionScope using GORM transactions
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the function within a database transaction. The repositories
// handed to fn all write through the same *gorm.DB transaction handle.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos stock.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories builds repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) StockLineRepo() ledger.StockLineRepository {
	return NewGormStockLineRepository(r.tx)
}

func (r *gormTransactionalRepositories) MovementRepo() ledger.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) CostLayerRepo() valuation.CostLayerRepository {
	return NewGormCostLayerRepository(r.tx)
}

func (r *gormTransactionalRepositories) ReservationRepo() reservation.Repository {
	return NewGormReservationRepository(r.tx)
}

func (r *gormTransactionalRepositories) PickingRepo() picking.Repository {
	return NewGormPickingRepository(r.tx)
}

// Ensure interfaces are implemented
var _ stock.TransactionScope = (*GormTransactionScope)(nil)
var _ stock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
