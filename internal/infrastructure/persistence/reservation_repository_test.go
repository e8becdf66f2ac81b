package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/shared"
)

func setupReservationTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&reservation.Reservation{})
	require.NoError(t, err)

	return db
}

func newTestReservation(t *testing.T, tenantID, variantID, warehouseID uuid.UUID, qty int64, referenceID string) *reservation.Reservation {
	t.Helper()
	res, err := reservation.NewReservation(tenantID, variantID, warehouseID,
		decimal.NewFromInt(qty), referenceID)
	require.NoError(t, err)
	return res
}

func TestGormReservationRepository_SaveAndFind(t *testing.T) {
	db := setupReservationTestDB(t)
	repo := NewGormReservationRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	variantID := uuid.New()
	warehouseID := uuid.New()

	res := newTestReservation(t, tenantID, variantID, warehouseID, 5, "SO-2001")
	require.NoError(t, repo.Save(ctx, res))

	t.Run("finds by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenantID, res.ID)
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusPending, found.Status)
		assert.True(t, decimal.NewFromInt(5).Equal(found.Quantity))
	})

	t.Run("finds by reference", func(t *testing.T) {
		found, err := repo.FindByReference(ctx, tenantID, "SO-2001")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, res.ID, found[0].ID)
	})

	t.Run("unknown id returns not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormReservationRepository_FindHeld(t *testing.T) {
	db := setupReservationTestDB(t)
	repo := NewGormReservationRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	variantID := uuid.New()
	warehouseID := uuid.New()

	pending := newTestReservation(t, tenantID, variantID, warehouseID, 3, "SO-1")
	require.NoError(t, repo.Save(ctx, pending))

	active := newTestReservation(t, tenantID, variantID, warehouseID, 2, "SO-2")
	require.NoError(t, active.Activate())
	require.NoError(t, repo.Save(ctx, active))

	released := newTestReservation(t, tenantID, variantID, warehouseID, 4, "SO-3")
	require.NoError(t, released.Release())
	require.NoError(t, repo.Save(ctx, released))

	t.Run("returns pending and active only", func(t *testing.T) {
		held, err := repo.FindHeld(ctx, tenantID, variantID, warehouseID)
		require.NoError(t, err)
		assert.Len(t, held, 2)
	})

	t.Run("sums held quantity", func(t *testing.T) {
		total, err := repo.SumHeldQuantity(ctx, tenantID, variantID, warehouseID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(5).Equal(total))
	})
}

func TestGormReservationRepository_FindExpired(t *testing.T) {
	db := setupReservationTestDB(t)
	repo := NewGormReservationRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	now := time.Now()

	overdue := newTestReservation(t, tenantID, uuid.New(), uuid.New(), 1, "SO-1")
	overdue.WithExpiry(now.Add(-time.Minute))
	require.NoError(t, repo.Save(ctx, overdue))

	future := newTestReservation(t, tenantID, uuid.New(), uuid.New(), 1, "SO-2")
	future.WithExpiry(now.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, future))

	noExpiry := newTestReservation(t, tenantID, uuid.New(), uuid.New(), 1, "SO-3")
	require.NoError(t, repo.Save(ctx, noExpiry))

	t.Run("returns only overdue holds", func(t *testing.T) {
		expired, err := repo.FindExpired(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, overdue.ID, expired[0].ID)
	})

	t.Run("respects the limit", func(t *testing.T) {
		another := newTestReservation(t, tenantID, uuid.New(), uuid.New(), 1, "SO-4")
		another.WithExpiry(now.Add(-time.Hour))
		require.NoError(t, repo.Save(ctx, another))

		expired, err := repo.FindExpired(ctx, now, 1)
		require.NoError(t, err)
		assert.Len(t, expired, 1)
	})

	t.Run("released holds never expire", func(t *testing.T) {
		require.NoError(t, overdue.Release())
		require.NoError(t, repo.Save(ctx, overdue))

		expired, err := repo.FindExpired(ctx, now, 10)
		require.NoError(t, err)
		for _, res := range expired {
			assert.NotEqual(t, overdue.ID, res.ID)
		}
	})
}

func TestGormReservationRepository_SaveWithLock(t *testing.T) {
	db := setupReservationTestDB(t)
	repo := NewGormReservationRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()

	res := newTestReservation(t, tenantID, uuid.New(), uuid.New(), 5, "SO-1")
	require.NoError(t, repo.Save(ctx, res))

	t.Run("persists a state transition", func(t *testing.T) {
		require.NoError(t, res.Activate())
		require.NoError(t, repo.SaveWithLock(ctx, res))

		found, err := repo.FindByID(ctx, tenantID, res.ID)
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusActive, found.Status)
	})

	t.Run("rejects stale version", func(t *testing.T) {
		stale := *res
		stale.Version = res.Version + 3
		err := repo.SaveWithLock(ctx, &stale)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "OPTIMISTIC_LOCK_FAILED", domainErr.Code)
	})
}
