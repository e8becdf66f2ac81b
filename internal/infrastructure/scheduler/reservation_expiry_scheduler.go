package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wms/backend/internal/application/stock"
)

// ReservationExpiryScheduler periodically sweeps overdue reservations so held
// quantity flows back into ATP without manual intervention.
type ReservationExpiryScheduler struct {
	service   *stock.ReservationExpiryService
	logger    *zap.Logger
	config    ReservationExpirySchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// ReservationExpirySchedulerConfig holds configuration for the expiry scheduler
type ReservationExpirySchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// SweepInterval is the time between sweeps
	SweepInterval time.Duration

	// SweepTimeout is the maximum time for a single sweep run
	SweepTimeout time.Duration
}

// DefaultReservationExpirySchedulerConfig returns default configuration
func DefaultReservationExpirySchedulerConfig() ReservationExpirySchedulerConfig {
	return ReservationExpirySchedulerConfig{
		Enabled:       true,
		SweepInterval: time.Minute,
		SweepTimeout:  30 * time.Second,
	}
}

// NewReservationExpiryScheduler creates a new reservation expiry scheduler
func NewReservationExpiryScheduler(
	service *stock.ReservationExpiryService,
	logger *zap.Logger,
	config ReservationExpirySchedulerConfig,
) *ReservationExpiryScheduler {
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = 30 * time.Second
	}
	return &ReservationExpiryScheduler{
		service: service,
		logger:  logger,
		config:  config,
	}
}

// Start starts the sweep loop
func (s *ReservationExpiryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Reservation expiry scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runSweepLoop(ctx)

	s.logger.Info("Reservation expiry scheduler started",
		zap.Duration("sweep_interval", s.config.SweepInterval),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *ReservationExpiryScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reservation expiry scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reservation expiry scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerImmediateSweep runs one sweep outside the regular interval
func (s *ReservationExpiryScheduler) TriggerImmediateSweep(ctx context.Context) (*stock.ExpirySweepStats, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()
	return s.service.ExpireDue(sweepCtx)
}

// IsRunning returns whether the scheduler is running
func (s *ReservationExpiryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// runSweepLoop sweeps on every tick until the context is cancelled
func (s *ReservationExpiryScheduler) runSweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Reservation expiry sweep loop stopping")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep runs one bounded sweep and logs the outcome
func (s *ReservationExpiryScheduler) executeSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startTime := time.Now()
	stats, err := s.service.ExpireDue(sweepCtx)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Reservation expiry sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	if stats.TotalDue > 0 {
		s.logger.Info("Reservation expiry sweep completed",
			zap.Duration("duration", duration),
			zap.Int("total_due", stats.TotalDue),
			zap.Int("expired", stats.Expired),
			zap.Int("failed", stats.Failed),
		)
	}
}
