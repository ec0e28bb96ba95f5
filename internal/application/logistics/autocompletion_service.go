package logistics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

const (
	// DefaultAutoCompletionGrace is how long after delivery the buyer can
	// still act before the shipment finalizes on their behalf (3 days)
	DefaultAutoCompletionGrace = 72 * time.Hour

	// DefaultAutoCompletionBatchSize bounds the shipments handled per run
	DefaultAutoCompletionBatchSize = 200
)

// AutoCompletionStats contains statistics about one auto-completion run
type AutoCompletionStats struct {
	TotalEligible  int       `json:"total_eligible"`
	Completed      int       `json:"completed"`
	ItemsCompleted int       `json:"items_completed"`
	Failed         int       `json:"failed"`
	RemindersSent  int       `json:"reminders_sent"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// AutoCompletionService finalizes delivered shipments whose buyers never
// confirmed. It also fires the fixed post-delivery reminder ladder so the
// buyer hears about the closing window before it closes.
type AutoCompletionService struct {
	txScope        TransactionScope
	grace          time.Duration
	batchSize      int
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewAutoCompletionService creates a new AutoCompletionService
func NewAutoCompletionService(txScope TransactionScope, logger *zap.Logger) *AutoCompletionService {
	return &AutoCompletionService{
		txScope:   txScope,
		grace:     DefaultAutoCompletionGrace,
		batchSize: DefaultAutoCompletionBatchSize,
		logger:    logger,
	}
}

// SetGrace overrides the post-delivery grace window
func (s *AutoCompletionService) SetGrace(grace time.Duration) {
	if grace > 0 {
		s.grace = grace
	}
}

// SetBatchSize overrides the per-run batch bound
func (s *AutoCompletionService) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *AutoCompletionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Run executes one sweep: overdue reminders first, then auto-completion of
// shipments past the grace window. Per-shipment failures are logged and
// skipped.
func (s *AutoCompletionService) Run(ctx context.Context) (*AutoCompletionStats, error) {
	stats := &AutoCompletionStats{ProcessedAt: time.Now()}

	if err := s.sendReminders(ctx, stats); err != nil {
		s.logger.Error("Reminder pass failed", zap.Error(err))
	}

	cutoff := stats.ProcessedAt.Add(-s.grace)
	var eligible []*logistics.Shipment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		eligible, err = repos.ShipmentRepo().FindDeliveredBefore(ctx, cutoff, s.batchSize)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to find auto-completion candidates", zap.Error(err))
		return nil, err
	}

	stats.TotalEligible = len(eligible)
	if stats.TotalEligible == 0 {
		s.logger.Debug("No shipments eligible for auto-completion")
		return stats, nil
	}

	s.logger.Info("Found shipments eligible for auto-completion",
		zap.Int("count", stats.TotalEligible),
		zap.Time("cutoff", cutoff),
	)

	for _, candidate := range eligible {
		items, err := s.completeShipment(ctx, candidate.ID)
		if err != nil {
			s.logger.Error("Failed to auto-complete shipment",
				zap.String("shipment_id", candidate.ID.String()),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.Completed++
		stats.ItemsCompleted += items
	}

	s.logger.Info("Completed auto-completion sweep",
		zap.Int("eligible", stats.TotalEligible),
		zap.Int("completed", stats.Completed),
		zap.Int("items_completed", stats.ItemsCompleted),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// completeShipment finalizes one shipment in its own transaction. The
// candidate is re-read inside the transaction; a shipment completed by a
// concurrent run is left alone. Items still under an open return keep
// their state.
func (s *AutoCompletionService) completeShipment(ctx context.Context, shipmentID uuid.UUID) (int, error) {
	var sh *logistics.Shipment
	completed := 0

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		sh, err = repos.ShipmentRepo().FindByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if !sh.EligibleForAutoCompletion(s.grace, time.Now()) {
			sh = nil
			return nil
		}

		o, err := repos.OrderRepo().FindByID(ctx, sh.OrderID)
		if err != nil {
			return err
		}
		itemIDs := make([]uuid.UUID, 0)
		for idx := range o.Items {
			item := &o.Items[idx]
			if item.ShipmentID != nil && *item.ShipmentID == sh.ID &&
				item.State == order.ItemStateActive && item.DeliveredAt != nil {
				itemIDs = append(itemIDs, item.ID)
			}
		}
		if len(itemIDs) > 0 {
			completed, err = repos.OrderRepo().BulkCompleteItems(ctx, itemIDs, time.Now())
			if err != nil {
				return err
			}
		}

		if err := sh.MarkAutoCompleted(); err != nil {
			return err
		}
		return repos.ShipmentRepo().Save(ctx, sh)
	})
	if err != nil || sh == nil {
		return 0, err
	}

	s.publishShipmentEvents(ctx, sh)
	return completed, nil
}

// sendReminders fires each overdue reminder window once per shipment
func (s *AutoCompletionService) sendReminders(ctx context.Context, stats *AutoCompletionStats) error {
	var pending []*logistics.Shipment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		pending, err = repos.ShipmentRepo().FindDeliveredPendingReminders(ctx, s.batchSize)
		return err
	})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, sh := range pending {
		sent := false
		for _, window := range logistics.AllReminderWindows() {
			if !sh.ReminderWindowOpen(window, now) {
				continue
			}
			if err := sh.MarkReminderSent(window); err != nil {
				s.logger.Error("Failed to mark reminder",
					zap.String("shipment_id", sh.ID.String()),
					zap.String("window", string(window)),
					zap.Error(err),
				)
				continue
			}
			sent = true
			stats.RemindersSent++
		}
		if !sent {
			continue
		}
		saveErr := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			return repos.ShipmentRepo().Save(ctx, sh)
		})
		if saveErr != nil {
			s.logger.Error("Failed to persist reminder flags",
				zap.String("shipment_id", sh.ID.String()),
				zap.Error(saveErr),
			)
			continue
		}
		s.publishShipmentEvents(ctx, sh)
	}
	return nil
}

// publishShipmentEvents flushes a shipment's pending domain events
func (s *AutoCompletionService) publishShipmentEvents(ctx context.Context, sh *logistics.Shipment) {
	if s.eventPublisher == nil {
		return
	}
	events := sh.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	sh.ClearDomainEvents()
}
