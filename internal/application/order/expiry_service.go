package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

const (
	// DefaultPendingExpiry is how long an order may stay PENDING before the
	// sweep cancels it (30 minutes)
	DefaultPendingExpiry = 30 * time.Minute

	// DefaultExpiryBatchSize bounds the orders handled per sweep run
	DefaultExpiryBatchSize = 200

	expiryCancelReason = "payment window expired"
)

// ExpiryStats contains statistics about one expiry sweep run
type ExpiryStats struct {
	TotalExpired int       `json:"total_expired"`
	Cancelled    int       `json:"cancelled"`
	Failed       int       `json:"failed"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// ExpiryService cancels orders that stayed PENDING past the expiry window,
// releasing their stock holds and removing their never-submitted shipments.
// The sweep processes a bounded batch per run and collapses the status flip
// into one bulk write.
type ExpiryService struct {
	txScope        TransactionScope
	expiry         time.Duration
	batchSize      int
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewExpiryService creates a new ExpiryService
func NewExpiryService(txScope TransactionScope, logger *zap.Logger) *ExpiryService {
	return &ExpiryService{
		txScope:   txScope,
		expiry:    DefaultPendingExpiry,
		batchSize: DefaultExpiryBatchSize,
		logger:    logger,
	}
}

// SetExpiry overrides the pending expiry window
func (s *ExpiryService) SetExpiry(expiry time.Duration) {
	if expiry > 0 {
		s.expiry = expiry
	}
}

// SetBatchSize overrides the per-run batch bound
func (s *ExpiryService) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ExpiryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ExpirePendingOrders cancels every expired pending order in one
// transaction. Candidates are locked on the scan, holds are aggregated per
// variant, and the status flip lands as a single bulk update.
func (s *ExpiryService) ExpirePendingOrders(ctx context.Context) (*ExpiryStats, error) {
	stats := &ExpiryStats{ProcessedAt: time.Now()}
	cutoff := stats.ProcessedAt.Add(-s.expiry)

	var expired []order.Order
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		expired, err = repos.OrderRepo().FindPendingOlderThan(ctx, cutoff, s.batchSize)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		// collapse the holds first so each variant is locked and written
		// once even when several expired orders share it
		releases := make(map[uuid.UUID]int)
		ids := make([]uuid.UUID, 0, len(expired))
		for i := range expired {
			ids = append(ids, expired[i].ID)
			for j := range expired[i].Items {
				releases[expired[i].Items[j].VariantID] += expired[i].Items[j].Quantity
			}
		}

		touched := make(map[catalog.ProductRef]struct{})
		for variantID, quantity := range releases {
			variant, err := repos.VariantRepo().FindByIDForUpdate(ctx, variantID)
			if err != nil {
				return err
			}
			if err := variant.Release(quantity); err != nil {
				return err
			}
			if err := repos.VariantRepo().Save(ctx, variant); err != nil {
				return err
			}
			touched[variant.Product] = struct{}{}
		}

		if err := repos.ShipmentRepo().DeleteByOrders(ctx, ids); err != nil {
			return err
		}

		// in-memory transition for validation and domain events; the
		// persisted flip is the bulk update below
		for i := range expired {
			if err := expired[i].Cancel(expiryCancelReason); err != nil {
				return err
			}
		}
		cancelled, err := repos.OrderRepo().BulkCancelPending(ctx, ids, expiryCancelReason, stats.ProcessedAt)
		if err != nil {
			return err
		}
		stats.Cancelled = cancelled
		return recomputeIndexes(ctx, repos, touched)
	})
	if err != nil {
		s.logger.Error("Pending order expiry sweep failed", zap.Error(err))
		return nil, err
	}

	stats.TotalExpired = len(expired)
	stats.Failed = stats.TotalExpired - stats.Cancelled
	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired pending orders found")
		return stats, nil
	}

	if s.eventPublisher != nil {
		for i := range expired {
			events := expired[i].GetDomainEvents()
			if len(events) == 0 {
				continue
			}
			_ = s.eventPublisher.Publish(ctx, events...)
			expired[i].ClearDomainEvents()
		}
	}

	s.logger.Info("Completed pending order expiry",
		zap.Int("total", stats.TotalExpired),
		zap.Int("cancelled", stats.Cancelled),
		zap.Int("failed", stats.Failed),
		zap.Time("cutoff", cutoff),
	)
	return stats, nil
}
