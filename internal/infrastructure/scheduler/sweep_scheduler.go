package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	applogistics "github.com/marketplace/backend/internal/application/logistics"
	apporder "github.com/marketplace/backend/internal/application/order"
	"github.com/marketplace/backend/internal/infrastructure/config"
)

// sweepTimeout bounds a single reconciliation pass
const sweepTimeout = 5 * time.Minute

// SweepScheduler periodically runs the two reconciliation sweeps: expiring
// stale pending orders and auto-completing delivered shipments the buyer
// never confirmed. Both sweeps are idempotent, so overlapping deployments
// running them concurrently is harmless.
type SweepScheduler struct {
	expiry         *apporder.ExpiryService
	autoCompletion *applogistics.AutoCompletionService
	cfg            config.SweepConfig
	logger         *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweepScheduler creates a sweep scheduler from configuration
func NewSweepScheduler(
	expiry *apporder.ExpiryService,
	autoCompletion *applogistics.AutoCompletionService,
	cfg config.SweepConfig,
	logger *zap.Logger,
) *SweepScheduler {
	return &SweepScheduler{
		expiry:         expiry,
		autoCompletion: autoCompletion,
		cfg:            cfg,
		logger:         logger,
	}
}

// Start launches the sweep loop. Starting a running scheduler is a no-op.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.cfg.Enabled {
		s.mu.Unlock()
		s.logger.Info("Sweep scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Sweep scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("pending_expiry", s.cfg.PendingExpiry),
		zap.Duration("auto_completion_grace", s.cfg.AutoCompletionGrace),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight sweep
func (s *SweepScheduler) Stop(ctx context.Context) error {
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
		s.logger.Info("Sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// run sweeps once immediately, then on every interval tick
func (s *SweepScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.sweep(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one reconciliation pass. A failing sweep is logged and the
// next tick retries; the two sweeps never block each other's work.
func (s *SweepScheduler) sweep(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	if stats, err := s.expiry.ExpirePendingOrders(runCtx); err != nil {
		s.logger.Error("Pending order expiry sweep failed", zap.Error(err))
	} else if stats.TotalExpired > 0 {
		s.logger.Info("Pending order expiry sweep finished",
			zap.Int("total_expired", stats.TotalExpired),
			zap.Int("cancelled", stats.Cancelled),
			zap.Int("failed", stats.Failed),
		)
	}

	if stats, err := s.autoCompletion.Run(runCtx); err != nil {
		s.logger.Error("Auto-completion sweep failed", zap.Error(err))
	} else if stats.Completed > 0 || stats.RemindersSent > 0 {
		s.logger.Info("Auto-completion sweep finished",
			zap.Int("completed", stats.Completed),
			zap.Int("items_completed", stats.ItemsCompleted),
			zap.Int("reminders_sent", stats.RemindersSent),
			zap.Int("failed", stats.Failed),
		)
	}
}
