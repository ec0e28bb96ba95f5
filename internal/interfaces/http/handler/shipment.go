package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	logisticsapp "github.com/marketplace/backend/internal/application/logistics"
)

// ShipmentHandler handles shipment API endpoints
type ShipmentHandler struct {
	BaseHandler
	shipmentService *logisticsapp.ShipmentService
}

// NewShipmentHandler creates a new ShipmentHandler
func NewShipmentHandler(shipmentService *logisticsapp.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{
		shipmentService: shipmentService,
	}
}

// GetShipment godoc
// @Summary      Get a shipment
// @Tags         shipments
// @Produce      json
// @Param        id path string true "Shipment ID"
// @Success      200 {object} dto.Response{data=logisticsapp.ShipmentResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /shipments/{id} [get]
func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shipment ID format")
		return
	}

	resp, err := h.shipmentService.GetShipment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// ListForOrder godoc
// @Summary      List an order's shipments
// @Tags         shipments
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=[]logisticsapp.ShipmentResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /shipments/orders/{id} [get]
func (h *ShipmentHandler) ListForOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	shipments, err := h.shipmentService.ListShipmentsForOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, shipments)
}

// SubmitForOrder godoc
// @Summary      Submit an order's shipments to the carrier
// @Description  Request a waybill for every unsubmitted shipment of a paid order; the order moves to SHIPPED once all carry waybills
// @Tags         shipments
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=logisticsapp.SubmitShipmentsResult}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /shipments/orders/{id}/submit [post]
func (h *ShipmentHandler) SubmitForOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	result, err := h.shipmentService.SubmitShipmentsForOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
