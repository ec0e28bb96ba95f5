package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	logisticsapp "github.com/marketplace/backend/internal/application/logistics"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/interfaces/http/dto"
)

// maxCarrierPayloadSize limits carrier webhook bodies (64KB)
const maxCarrierPayloadSize = 65536

// CarrierWebhookHandler handles carrier status webhook endpoints.
// These endpoints are called by the logistics provider and carry an
// encrypted envelope instead of authentication headers.
type CarrierWebhookHandler struct {
	BaseHandler
	webhookService *logisticsapp.WebhookService
}

// NewCarrierWebhookHandler creates a new CarrierWebhookHandler
func NewCarrierWebhookHandler(webhookService *logisticsapp.WebhookService) *CarrierWebhookHandler {
	return &CarrierWebhookHandler{
		webhookService: webhookService,
	}
}

// CarrierWebhookResponse represents the response for a carrier webhook
// @Description Carrier webhook acknowledgement
type CarrierWebhookResponse struct {
	Received bool                           `json:"received" example:"true"`
	Shipment *logisticsapp.ShipmentResponse `json:"shipment,omitempty"`
	Message  string                         `json:"message,omitempty"`
}

// HandleCarrierWebhook godoc
// @Summary      Handle a carrier status webhook
// @Description  Decrypt and apply a shipment status notification from the logistics provider
// @Tags         webhooks
// @Accept       octet-stream
// @Produce      json
// @Success      200 {object} CarrierWebhookResponse "Webhook processed or deduplicated"
// @Failure      400 {object} CarrierWebhookResponse "Invalid envelope"
// @Failure      404 {object} CarrierWebhookResponse "Unknown waybill"
// @Failure      413 {object} CarrierWebhookResponse "Payload too large"
// @Router       /webhooks/carrier [post]
func (h *CarrierWebhookHandler) HandleCarrierWebhook(c *gin.Context) {
	envelope, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCarrierPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, CarrierWebhookResponse{
			Received: false,
			Message:  "Failed to read request body",
		})
		return
	}
	if len(envelope) > maxCarrierPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, CarrierWebhookResponse{
			Received: false,
			Message:  "Payload too large",
		})
		return
	}

	shipment, err := h.webhookService.ApplyCarrierWebhook(c.Request.Context(), envelope)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, CarrierWebhookResponse{
				Received: false,
				Message:  "Envelope could not be decrypted or parsed",
			})
			return
		}
		if errors.Is(err, shared.ErrNotFound) {
			// unknown waybill, let the carrier retry once the shipment lands
			c.JSON(http.StatusNotFound, CarrierWebhookResponse{
				Received: false,
				Message:  "Waybill not found",
			})
			return
		}
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			c.JSON(dto.GetHTTPStatus(dto.NormalizeErrorCode(domainErr.Code)), CarrierWebhookResponse{
				Received: false,
				Message:  domainErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, CarrierWebhookResponse{
			Received: false,
			Message:  "Internal error",
		})
		return
	}

	// a nil shipment with no error means the notification was a replay
	c.JSON(http.StatusOK, CarrierWebhookResponse{
		Received: true,
		Shipment: shipment,
	})
}
