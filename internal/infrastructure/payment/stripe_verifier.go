package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	apporder "github.com/marketplace/backend/internal/application/order"
	"github.com/marketplace/backend/internal/infrastructure/config"
)

// orderNumberKey is the metadata key the checkout flow stamps onto every
// payment intent so the webhook can be routed back to its order.
const orderNumberKey = "order_number"

// StripeWebhookVerifier authenticates Stripe webhooks and normalizes
// payment intent outcomes into payment notifications.
type StripeWebhookVerifier struct {
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeWebhookVerifier creates a verifier from payment configuration
func NewStripeWebhookVerifier(cfg config.PaymentConfig, logger *zap.Logger) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{
		webhookSecret: cfg.StripeWebhookSecret,
		logger:        logger,
	}
}

// Verify checks the Stripe signature and extracts the payment outcome.
// Event types other than payment intent success and failure are authentic
// but irrelevant here, so they come back as a nil notification.
func (v *StripeWebhookVerifier) Verify(payload []byte, signature string) (*apporder.PaymentNotification, error) {
	event, err := webhook.ConstructEvent(payload, signature, v.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		return v.notificationFromIntent(event, true)
	case "payment_intent.payment_failed":
		return v.notificationFromIntent(event, false)
	default:
		v.logger.Debug("Unhandled Stripe event type",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
		)
		return nil, nil
	}
}

// notificationFromIntent unmarshals the payment intent and maps it onto a
// notification. An intent without an order number cannot be routed.
func (v *StripeWebhookVerifier) notificationFromIntent(event stripe.Event, succeeded bool) (*apporder.PaymentNotification, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	orderNumber := intent.Metadata[orderNumberKey]
	if orderNumber == "" {
		return nil, fmt.Errorf("payment intent %s carries no order number", intent.ID)
	}

	reason := ""
	if !succeeded && intent.LastPaymentError != nil {
		reason = intent.LastPaymentError.Msg
	}

	return &apporder.PaymentNotification{
		EventID:     event.ID,
		OrderNumber: orderNumber,
		Succeeded:   succeeded,
		Reason:      reason,
	}, nil
}

// Ensure StripeWebhookVerifier implements PaymentWebhookVerifier
var _ apporder.PaymentWebhookVerifier = (*StripeWebhookVerifier)(nil)
