package logistics

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// OrderPaidHandler submits an order's shipments to the carrier as soon as
// the payment lands. Submission failures are logged, not propagated; the
// next payment-side retry or a manual resubmission picks them up.
type OrderPaidHandler struct {
	shipments *ShipmentService
	logger    *zap.Logger
}

// NewOrderPaidHandler creates a new handler for order paid events
func NewOrderPaidHandler(shipments *ShipmentService, logger *zap.Logger) *OrderPaidHandler {
	return &OrderPaidHandler{
		shipments: shipments,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderPaidHandler) EventTypes() []string {
	return []string{order.EventTypeOrderPaid}
}

// Handle pushes the paid order's shipments to the carrier
func (h *OrderPaidHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	orderID := event.AggregateID()
	if orderID == uuid.Nil {
		h.logger.Error("Order paid event without aggregate ID")
		return nil
	}

	result, err := h.shipments.SubmitShipmentsForOrder(ctx, orderID)
	if err != nil {
		h.logger.Error("Carrier submission after payment failed",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return err
	}
	if !result.AllSucceeded {
		h.logger.Warn("Carrier accepted only part of the order",
			zap.String("order_id", orderID.String()),
			zap.Int("shipments", len(result.Results)),
		)
	}
	return nil
}

// Ensure OrderPaidHandler implements shared.EventHandler
var _ shared.EventHandler = (*OrderPaidHandler)(nil)
