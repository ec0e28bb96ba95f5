package logistics

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// WebhookDecrypter opens the carrier's encrypted webhook envelope and
// returns the plaintext JSON payload. The AES-CBC implementation lives in
// infrastructure/carrier.
type WebhookDecrypter interface {
	Decrypt(envelope []byte) ([]byte, error)
}

// WebhookService reconciles carrier status notifications onto shipments and
// their orders. Application is compare-before-write: a replayed or stale
// notification changes nothing and is acknowledged, so the carrier stops
// retrying it.
type WebhookService struct {
	txScope        TransactionScope
	decrypter      WebhookDecrypter
	idempotency    shared.IdempotencyStore
	idemCfg        shared.IdempotencyConfig
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(
	txScope TransactionScope,
	decrypter WebhookDecrypter,
	idempotency shared.IdempotencyStore,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		txScope:     txScope,
		decrypter:   decrypter,
		idempotency: idempotency,
		idemCfg:     shared.DefaultIdempotencyConfig(),
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *WebhookService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ApplyCarrierWebhook decrypts, deduplicates and applies one carrier
// notification. Unknown waybills error so the carrier retries later; an
// out-of-order or repeated status is a no-op.
func (s *WebhookService) ApplyCarrierWebhook(ctx context.Context, envelope []byte) (*ShipmentResponse, error) {
	plaintext, err := s.decrypter.Decrypt(envelope)
	if err != nil {
		s.logger.Warn("Rejected carrier webhook envelope", zap.Error(err))
		return nil, shared.ErrInvalidPayload
	}

	var payload CarrierWebhookPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		s.logger.Warn("Malformed carrier webhook payload", zap.Error(err))
		return nil, shared.ErrInvalidPayload
	}
	if payload.Waybill == "" || payload.StatusCode == "" {
		return nil, shared.ErrInvalidPayload
	}

	status, err := logistics.StatusForCarrierCode(payload.StatusCode)
	if err != nil {
		s.logger.Warn("Carrier webhook with unknown status code",
			zap.String("waybill", payload.Waybill),
			zap.String("status_code", payload.StatusCode),
		)
		return nil, err
	}
	at := s.occurredAt(payload)

	if s.idempotency != nil && s.idemCfg.Enabled {
		key := "carrier:" + payload.Waybill + ":" + payload.StatusCode
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idemCfg.TTL)
		if err != nil {
			s.logger.Warn("Idempotency store unavailable, processing anyway",
				zap.String("waybill", payload.Waybill),
				zap.Error(err),
			)
		} else if !fresh {
			s.logger.Debug("Skipping replayed carrier webhook",
				zap.String("waybill", payload.Waybill),
				zap.String("status_code", payload.StatusCode),
			)
			return nil, nil
		}
	}

	var sh *logistics.Shipment
	var o *order.Order
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		sh, err = repos.ShipmentRepo().FindByWaybill(ctx, payload.Waybill)
		if err != nil {
			return err
		}

		changed, err := sh.ApplyStatus(status, at)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := repos.ShipmentRepo().Save(ctx, sh); err != nil {
			return err
		}

		o, err = repos.OrderRepo().FindByID(ctx, sh.OrderID)
		if err != nil {
			return err
		}
		return s.reconcileOrder(ctx, repos, sh, o, status, at)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, sh, o)
	s.logger.Info("Carrier webhook applied",
		zap.String("waybill", payload.Waybill),
		zap.String("status", status.String()),
		zap.String("location", payload.Location),
	)
	response := ToShipmentResponse(sh)
	return &response, nil
}

// reconcileOrder mirrors a shipment milestone onto the owning order. The
// order reaches AT_PICK_UP on the first pickup-point milestone and
// DELIVERED once every one of its shipments is delivered.
func (s *WebhookService) reconcileOrder(
	ctx context.Context,
	repos TransactionalRepositories,
	sh *logistics.Shipment,
	o *order.Order,
	status logistics.ShipmentStatus,
	at time.Time,
) error {
	switch {
	case status == logistics.ShipmentStatusAtPickupPoint:
		if o.Status == order.OrderStatusShipped {
			if err := o.MarkAtPickup(); err != nil {
				return err
			}
		}

	case status.IsDelivered():
		for idx := range o.Items {
			item := &o.Items[idx]
			if item.ShipmentID != nil && *item.ShipmentID == sh.ID {
				item.MarkDelivered(at)
				if err := repos.OrderRepo().SaveItem(ctx, item); err != nil {
					return err
				}
			}
		}

		allDelivered, err := s.allShipmentsDelivered(ctx, repos, sh)
		if err != nil {
			return err
		}
		if allDelivered && o.Status.CanTransitionTo(order.OrderStatusDelivered) {
			if err := o.MarkDelivered(at); err != nil {
				return err
			}
		}
	}
	return repos.OrderRepo().Save(ctx, o)
}

// allShipmentsDelivered checks the sibling shipments of the order
func (s *WebhookService) allShipmentsDelivered(ctx context.Context, repos TransactionalRepositories, sh *logistics.Shipment) (bool, error) {
	siblings, err := repos.ShipmentRepo().FindByOrder(ctx, sh.OrderID)
	if err != nil {
		return false, err
	}
	for _, sibling := range siblings {
		if sibling.ID == sh.ID {
			continue // already applied in memory
		}
		if !sibling.Status.IsDelivered() {
			return false, nil
		}
	}
	return true, nil
}

// occurredAt parses the carrier timestamp, falling back to now
func (s *WebhookService) occurredAt(payload CarrierWebhookPayload) time.Time {
	if payload.OccurredAt != "" {
		if t, err := time.Parse(time.RFC3339, payload.OccurredAt); err == nil {
			return t
		}
	}
	return time.Now()
}

// publish flushes pending domain events of the touched aggregates
func (s *WebhookService) publish(ctx context.Context, sh *logistics.Shipment, o *order.Order) {
	if s.eventPublisher == nil {
		return
	}
	var events []shared.DomainEvent
	if sh != nil {
		events = append(events, sh.GetDomainEvents()...)
	}
	if o != nil {
		events = append(events, o.GetDomainEvents()...)
	}
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	if sh != nil {
		sh.ClearDomainEvents()
	}
	if o != nil {
		o.ClearDomainEvents()
	}
}
