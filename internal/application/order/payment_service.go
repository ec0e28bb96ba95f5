package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/application/stock"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// PaymentNotification is the normalized form of a payment provider webhook
type PaymentNotification struct {
	EventID     string
	OrderNumber string
	Succeeded   bool
	Reason      string
}

// PaymentWebhookVerifier authenticates a raw provider webhook and extracts
// the payment outcome. A nil notification with a nil error means the webhook
// is authentic but carries an event type we do not act on. The Stripe-backed
// implementation lives in infrastructure/payment.
type PaymentWebhookVerifier interface {
	Verify(payload []byte, signature string) (*PaymentNotification, error)
}

// PaymentService applies payment outcomes to orders. Success commits the
// stock reservations, failure and cancellation release them; both paths run
// in one transaction with the status flip, and the PENDING status guard
// makes every path idempotent per order.
type PaymentService struct {
	txScope        TransactionScope
	verifier       PaymentWebhookVerifier
	idempotency    shared.IdempotencyStore
	idemCfg        shared.IdempotencyConfig
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	txScope TransactionScope,
	verifier PaymentWebhookVerifier,
	idempotency shared.IdempotencyStore,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		txScope:     txScope,
		verifier:    verifier,
		idempotency: idempotency,
		idemCfg:     shared.DefaultIdempotencyConfig(),
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ConfirmPayment flips the order to PAID and converts every reservation
// into a permanent deduction. A replay on a non-pending order returns
// ErrOrderNotPending and changes nothing.
func (s *PaymentService) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	var o *order.Order
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		o, err = repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.MarkPaid(); err != nil {
			return err
		}

		touched := make(map[catalog.ProductRef]struct{})
		for idx := range o.Items {
			item := &o.Items[idx]
			variant, err := repos.VariantRepo().FindByIDForUpdate(ctx, item.VariantID)
			if err != nil {
				return err
			}
			if err := variant.Commit(item.Quantity); err != nil {
				return err
			}
			if err := repos.VariantRepo().Save(ctx, variant); err != nil {
				return err
			}
			touched[variant.Product] = struct{}{}
		}
		if err := repos.OrderRepo().Save(ctx, o); err != nil {
			return err
		}
		return recomputeIndexes(ctx, repos, touched)
	})
	if err != nil {
		return nil, err
	}

	s.publishOrderEvents(ctx, o)
	s.logger.Info("Payment confirmed",
		zap.String("order_number", o.OrderNumber),
		zap.String("order_id", o.ID.String()),
	)
	response := ToOrderResponse(o)
	return &response, nil
}

// FailOrder flips the order to FAILED and releases its reservations
func (s *PaymentService) FailOrder(ctx context.Context, orderID uuid.UUID, reason string) (*OrderResponse, error) {
	return s.abort(ctx, orderID, func(o *order.Order) error {
		return o.MarkFailed(reason)
	})
}

// CancelOrder flips the order to CANCELLED and releases its reservations.
// Only pending orders can be cancelled.
func (s *PaymentService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*OrderResponse, error) {
	return s.abort(ctx, orderID, func(o *order.Order) error {
		return o.Cancel(reason)
	})
}

// ProcessPaymentWebhook authenticates a provider webhook, deduplicates it
// and applies the payment outcome to the referenced order. Replays and
// webhooks for orders that already left PENDING are acknowledged no-ops.
func (s *PaymentService) ProcessPaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	notification, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.logger.Warn("Rejected payment webhook", zap.Error(err))
		return shared.ErrInvalidPayload
	}
	if notification == nil {
		s.logger.Debug("Ignoring unhandled payment webhook event type")
		return nil
	}

	if s.idempotency != nil && s.idemCfg.Enabled {
		fresh, err := s.idempotency.MarkProcessed(ctx, "payment:"+notification.EventID, s.idemCfg.TTL)
		if err != nil {
			s.logger.Warn("Idempotency store unavailable, processing anyway",
				zap.String("event_id", notification.EventID),
				zap.Error(err),
			)
		} else if !fresh {
			s.logger.Debug("Skipping replayed payment webhook",
				zap.String("event_id", notification.EventID),
			)
			return nil
		}
	}

	var orderID uuid.UUID
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.OrderRepo().FindByOrderNumber(ctx, notification.OrderNumber)
		if err != nil {
			return err
		}
		orderID = o.ID
		return nil
	})
	if err != nil {
		return err
	}

	if notification.Succeeded {
		_, err = s.ConfirmPayment(ctx, orderID)
	} else {
		reason := notification.Reason
		if reason == "" {
			reason = "payment failed"
		}
		_, err = s.FailOrder(ctx, orderID, reason)
	}
	if errors.Is(err, shared.ErrOrderNotPending) {
		s.logger.Info("Payment webhook for settled order ignored",
			zap.String("order_number", notification.OrderNumber),
		)
		return nil
	}
	return err
}

// abort releases the order's reservations, removes its not-yet-submitted
// shipments and applies the terminal transition, all in one transaction.
func (s *PaymentService) abort(ctx context.Context, orderID uuid.UUID, transition func(*order.Order) error) (*OrderResponse, error) {
	var o *order.Order
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		o, err = repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := transition(o); err != nil {
			return err
		}

		touched, err := releaseOrderStock(ctx, repos, o)
		if err != nil {
			return err
		}
		if err := repos.ShipmentRepo().DeleteByOrder(ctx, o.ID); err != nil {
			return err
		}
		if err := repos.OrderRepo().Save(ctx, o); err != nil {
			return err
		}
		return recomputeIndexes(ctx, repos, touched)
	})
	if err != nil {
		return nil, err
	}

	s.publishOrderEvents(ctx, o)
	s.logger.Info("Order aborted",
		zap.String("order_number", o.OrderNumber),
		zap.String("status", o.Status.String()),
		zap.String("reason", o.CancelReason),
	)
	response := ToOrderResponse(o)
	return &response, nil
}

// publishOrderEvents flushes the order's pending domain events
func (s *PaymentService) publishOrderEvents(ctx context.Context, o *order.Order) {
	if s.eventPublisher == nil {
		return
	}
	events := o.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	o.ClearDomainEvents()
}

// releaseOrderStock returns every line's reservation to the available pool
func releaseOrderStock(ctx context.Context, repos TransactionalRepositories, o *order.Order) (map[catalog.ProductRef]struct{}, error) {
	touched := make(map[catalog.ProductRef]struct{})
	for idx := range o.Items {
		item := &o.Items[idx]
		variant, err := repos.VariantRepo().FindByIDForUpdate(ctx, item.VariantID)
		if err != nil {
			return nil, err
		}
		if err := variant.Release(item.Quantity); err != nil {
			return nil, err
		}
		if err := repos.VariantRepo().Save(ctx, variant); err != nil {
			return nil, err
		}
		touched[variant.Product] = struct{}{}
	}
	return touched, nil
}

// recomputeIndexes refreshes the product index of every touched product
func recomputeIndexes(ctx context.Context, repos TransactionalRepositories, touched map[catalog.ProductRef]struct{}) error {
	for ref := range touched {
		if err := stock.RecomputeProductIndex(ctx, repos, ref); err != nil {
			return err
		}
	}
	return nil
}
