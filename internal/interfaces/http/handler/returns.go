package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	orderapp "github.com/marketplace/backend/internal/application/order"
)

// ReturnHandler handles return request API endpoints
type ReturnHandler struct {
	BaseHandler
	returnService *orderapp.ReturnService
}

// NewReturnHandler creates a new ReturnHandler
func NewReturnHandler(returnService *orderapp.ReturnService) *ReturnHandler {
	return &ReturnHandler{
		returnService: returnService,
	}
}

// RequestReturn godoc
// @Summary      Open a return request on a delivered item
// @Tags         returns
// @Accept       json
// @Produce      json
// @Param        id path string true "Order item ID"
// @Param        request body orderapp.ReturnRequestCreate true "Return request"
// @Success      201 {object} dto.Response{data=orderapp.ReturnRequestResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /returns/items/{id} [post]
func (h *ReturnHandler) RequestReturn(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order item ID format")
		return
	}

	var req orderapp.ReturnRequestCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.returnService.RequestReturn(c.Request.Context(), itemID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// GetReturn godoc
// @Summary      Get a return request
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return request ID"
// @Success      200 {object} dto.Response{data=orderapp.ReturnRequestResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /returns/{id} [get]
func (h *ReturnHandler) GetReturn(c *gin.Context) {
	h.processReturn(c, h.returnService.GetReturn)
}

// ApproveReturn godoc
// @Summary      Approve a return request
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return request ID"
// @Success      200 {object} dto.Response{data=orderapp.ReturnRequestResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /returns/{id}/approve [post]
func (h *ReturnHandler) ApproveReturn(c *gin.Context) {
	h.processReturn(c, h.returnService.ApproveReturn)
}

// RejectReturn godoc
// @Summary      Reject a return request
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return request ID"
// @Success      200 {object} dto.Response{data=orderapp.ReturnRequestResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /returns/{id}/reject [post]
func (h *ReturnHandler) RejectReturn(c *gin.Context) {
	h.processReturn(c, h.returnService.RejectReturn)
}

// CompleteReturn godoc
// @Summary      Complete an approved return
// @Description  Mark the goods as received back and restock the variant
// @Tags         returns
// @Produce      json
// @Param        id path string true "Return request ID"
// @Success      200 {object} dto.Response{data=orderapp.ReturnRequestResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /returns/{id}/complete [post]
func (h *ReturnHandler) CompleteReturn(c *gin.Context) {
	h.processReturn(c, h.returnService.CompleteReturn)
}

// MarkItemReviewed godoc
// @Summary      Mark an order item as reviewed
// @Tags         returns
// @Produce      json
// @Param        id path string true "Order item ID"
// @Success      200 {object} dto.Response{data=orderapp.OrderItemResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /returns/items/{id}/review [post]
func (h *ReturnHandler) MarkItemReviewed(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order item ID format")
		return
	}

	resp, err := h.returnService.MarkItemReviewed(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// processReturn parses the request ID and applies the given return operation
func (h *ReturnHandler) processReturn(c *gin.Context, op func(context.Context, uuid.UUID) (*orderapp.ReturnRequestResponse, error)) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid return request ID format")
		return
	}

	resp, err := op(c.Request.Context(), requestID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}
