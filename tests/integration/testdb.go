// Package integration wires the full stack, from the HTTP router down to a
// real database, and drives it through the public API. SQLite keeps the tests
// self-contained; the repositories only use portable GORM constructs.
package integration

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/picking"
	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/valuation"
)

// NewTestDB opens a fresh in-memory database with the full schema
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to open test database")

	err = db.AutoMigrate(
		&ledger.StockLine{},
		&ledger.Movement{},
		&valuation.CostLayer{},
		&reservation.Reservation{},
		&picking.PickingList{},
		&picking.PickingTask{},
	)
	require.NoError(t, err, "Failed to migrate test schema")

	return db
}
