package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	orderapp "github.com/marketplace/backend/internal/application/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// maxPaymentPayloadSize limits payment webhook bodies (64KB - Stripe webhooks are small)
const maxPaymentPayloadSize = 65536

// PaymentWebhookHandler handles payment provider webhook endpoints.
// These endpoints are called by Stripe and authenticate through the
// signature header instead of the gateway.
type PaymentWebhookHandler struct {
	BaseHandler
	paymentService *orderapp.PaymentService
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler
func NewPaymentWebhookHandler(paymentService *orderapp.PaymentService) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		paymentService: paymentService,
	}
}

// PaymentWebhookResponse represents the response for a payment webhook
// @Description Payment webhook acknowledgement
type PaymentWebhookResponse struct {
	Received bool   `json:"received" example:"true"`
	Message  string `json:"message,omitempty"`
}

// HandlePaymentWebhook godoc
// @Summary      Handle a Stripe payment webhook
// @Description  Verify the Stripe signature and apply the payment outcome to the referenced order
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Stripe webhook signature"
// @Success      200 {object} PaymentWebhookResponse "Webhook processed"
// @Failure      400 {object} PaymentWebhookResponse "Invalid request"
// @Failure      401 {object} PaymentWebhookResponse "Invalid signature"
// @Failure      404 {object} PaymentWebhookResponse "Unknown order"
// @Failure      413 {object} PaymentWebhookResponse "Payload too large"
// @Router       /webhooks/payment [post]
func (h *PaymentWebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	// Stripe requires the raw body for signature verification
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPaymentPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, PaymentWebhookResponse{
			Received: false,
			Message:  "Failed to read request body",
		})
		return
	}
	if len(payload) > maxPaymentPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, PaymentWebhookResponse{
			Received: false,
			Message:  "Payload too large",
		})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusUnauthorized, PaymentWebhookResponse{
			Received: false,
			Message:  "Missing Stripe-Signature header",
		})
		return
	}

	if err := h.paymentService.ProcessPaymentWebhook(c.Request.Context(), payload, signature); err != nil {
		if errors.Is(err, shared.ErrInvalidPayload) {
			c.JSON(http.StatusUnauthorized, PaymentWebhookResponse{
				Received: false,
				Message:  "Webhook signature verification failed",
			})
			return
		}
		if errors.Is(err, shared.ErrNotFound) {
			// unknown order number, let Stripe retry
			c.JSON(http.StatusNotFound, PaymentWebhookResponse{
				Received: false,
				Message:  "Order not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, PaymentWebhookResponse{
			Received: false,
			Message:  "Failed to process webhook",
		})
		return
	}

	c.JSON(http.StatusOK, PaymentWebhookResponse{Received: true})
}
