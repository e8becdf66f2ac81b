package stock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/reservation"
	"github.com/wms/backend/internal/domain/shared"
)

// ReservationExpiryService sweeps overdue reservations. Expiring a
// reservation returns its quantity to ATP without touching the ledger.
type ReservationExpiryService struct {
	reservationRepo reservation.Repository
	eventBus        shared.EventPublisher
	logger          *zap.Logger
	batchSize       int
}

// NewReservationExpiryService creates a new ReservationExpiryService
func NewReservationExpiryService(
	reservationRepo reservation.Repository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
	batchSize int,
) *ReservationExpiryService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReservationExpiryService{
		reservationRepo: reservationRepo,
		eventBus:        eventBus,
		logger:          logger,
		batchSize:       batchSize,
	}
}

// ExpirySweepStats contains statistics about one sweep run
type ExpirySweepStats struct {
	TotalDue    int       `json:"total_due"`
	Expired     int       `json:"expired"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ExpireDue finds and expires all overdue reservations, publishing an event
// for each
func (s *ReservationExpiryService) ExpireDue(ctx context.Context) (*ExpirySweepStats, error) {
	stats := &ExpirySweepStats{ProcessedAt: time.Now()}

	due, err := s.reservationRepo.FindExpired(ctx, stats.ProcessedAt, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to find expired reservations", zap.Error(err))
		return nil, err
	}

	stats.TotalDue = len(due)
	if stats.TotalDue == 0 {
		s.logger.Debug("No expired reservations found")
		return stats, nil
	}

	s.logger.Info("Found expired reservations",
		zap.Int("count", stats.TotalDue),
	)

	for i := range due {
		r := &due[i]
		if err := s.expireOne(ctx, r); err != nil {
			s.logger.Error("Failed to expire reservation",
				zap.String("reservation_id", r.ID.String()),
				zap.String("reference_id", r.ReferenceID),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.Expired++
	}

	s.logger.Info("Completed reservation expiry sweep",
		zap.Int("total", stats.TotalDue),
		zap.Int("expired", stats.Expired),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *ReservationExpiryService) expireOne(ctx context.Context, r *reservation.Reservation) error {
	if err := r.Expire(); err != nil {
		return err
	}
	if err := s.reservationRepo.SaveWithLock(ctx, r); err != nil {
		return err
	}
	if s.eventBus != nil {
		if err := s.eventBus.Publish(ctx, reservation.NewReservationExpiredEvent(r)); err != nil {
			s.logger.Warn("Failed to publish expiry event",
				zap.String("reservation_id", r.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}
