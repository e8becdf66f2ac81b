package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/shared"
)

// ReservationService manages holds against available-to-promise. Reserve
// serializes on the stock key so that two competing reservations cannot both
// pass the availability check.
type ReservationService struct {
	reservationRepo reservation.Repository
	lineRepo        ledger.StockLineRepository
	txScope         TransactionScope
	locker          KeyedLocker
	eventBus        shared.EventPublisher
	logger          *zap.Logger
	defaultTTL      time.Duration
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	reservationRepo reservation.Repository,
	lineRepo ledger.StockLineRepository,
	txScope TransactionScope,
	locker KeyedLocker,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
	defaultTTL time.Duration,
) *ReservationService {
	return &ReservationService{
		reservationRepo: reservationRepo,
		lineRepo:        lineRepo,
		txScope:         txScope,
		locker:          locker,
		eventBus:        eventBus,
		logger:          logger,
		defaultTTL:      defaultTTL,
	}
}

// GetAvailableToPromise reports on-hand, reserved and ATP for a variant
func (s *ReservationService) GetAvailableToPromise(ctx context.Context, tenantID, variantID, warehouseID uuid.UUID) (*ATPResult, error) {
	onHand, err := s.lineRepo.SumOnHand(ctx, tenantID, ledger.StockLineQuery{
		VariantID:   variantID,
		WarehouseID: warehouseID,
	})
	if err != nil {
		return nil, err
	}
	reserved, err := s.reservationRepo.SumHeldQuantity(ctx, tenantID, variantID, warehouseID)
	if err != nil {
		return nil, err
	}
	return &ATPResult{
		OnHand:             onHand,
		Reserved:           reserved,
		AvailableToPromise: onHand.Sub(reserved),
	}, nil
}

// Reserve holds quantity against ATP. The check and the insert run under the
// stock key lock, so concurrent reserves for the same variant serialize and
// cannot oversell.
func (s *ReservationService) Reserve(ctx context.Context, cmd ReserveCommand) (*reservation.Reservation, error) {
	r, err := reservation.NewReservation(cmd.TenantID, cmd.VariantID, cmd.WarehouseID, cmd.Quantity, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}
	if cmd.Priority != "" {
		if !cmd.Priority.IsValid() {
			return nil, shared.NewDomainError("INVALID_PRIORITY", "Unknown reservation priority")
		}
		r.WithPriority(cmd.Priority)
	}
	ttl := cmd.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl > 0 {
		r.WithExpiry(time.Now().Add(ttl))
	}

	release, err := s.locker.Acquire(ctx, StockKey(cmd.TenantID, cmd.VariantID, cmd.WarehouseID))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		onHand, txErr := repos.StockLineRepo().SumOnHand(ctx, cmd.TenantID, ledger.StockLineQuery{
			VariantID:   cmd.VariantID,
			WarehouseID: cmd.WarehouseID,
		})
		if txErr != nil {
			return txErr
		}
		reserved, txErr := repos.ReservationRepo().SumHeldQuantity(ctx, cmd.TenantID, cmd.VariantID, cmd.WarehouseID)
		if txErr != nil {
			return txErr
		}
		if onHand.Sub(reserved).LessThan(cmd.Quantity) {
			return shared.ErrInsufficientStock
		}
		if txErr := r.Activate(); txErr != nil {
			return txErr
		}
		return repos.ReservationRepo().Save(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, reservation.NewReservationCreatedEvent(r))
	s.logger.Info("Reservation created",
		zap.String("reservation_id", r.ID.String()),
		zap.String("variant_id", cmd.VariantID.String()),
		zap.String("quantity", cmd.Quantity.String()),
		zap.String("reference_id", cmd.ReferenceID),
	)
	return r, nil
}

// Release cancels one reservation and returns its quantity to ATP. Releasing
// a reservation already in any terminal state succeeds without effect.
func (s *ReservationService) Release(ctx context.Context, tenantID, reservationID uuid.UUID) error {
	r, err := s.reservationRepo.FindByID(ctx, tenantID, reservationID)
	if err != nil {
		return err
	}
	if r.Status.IsTerminal() {
		return nil
	}
	if err := r.Release(); err != nil {
		return err
	}
	if err := s.reservationRepo.SaveWithLock(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, reservation.NewReservationReleasedEvent(r))
	return nil
}

// ReleaseByReference releases every held reservation of a source document and
// returns how many were released
func (s *ReservationService) ReleaseByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) (int, error) {
	reservations, err := s.reservationRepo.FindByReference(ctx, tenantID, referenceID)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range reservations {
		r := &reservations[i]
		if !r.HoldsStock() {
			continue
		}
		if err := r.Release(); err != nil {
			return released, err
		}
		if err := s.reservationRepo.SaveWithLock(ctx, r); err != nil {
			return released, err
		}
		s.publish(ctx, reservation.NewReservationReleasedEvent(r))
		released++
	}
	return released, nil
}

// FulfillByReference marks the active reservations of a source document as
// fulfilled. The caller is expected to post the matching issue movements in
// the same flow.
func (s *ReservationService) FulfillByReference(ctx context.Context, tenantID uuid.UUID, referenceID string) (int, error) {
	reservations, err := s.reservationRepo.FindByReference(ctx, tenantID, referenceID)
	if err != nil {
		return 0, err
	}

	fulfilled := 0
	for i := range reservations {
		r := &reservations[i]
		if !r.IsActive() {
			continue
		}
		if err := r.Fulfill(); err != nil {
			return fulfilled, err
		}
		if err := s.reservationRepo.SaveWithLock(ctx, r); err != nil {
			return fulfilled, err
		}
		s.publish(ctx, reservation.NewReservationFulfilledEvent(r))
		fulfilled++
	}
	return fulfilled, nil
}

func (s *ReservationService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
