package handler

import (
	"github.com/gin-gonic/gin"

	orderapp "github.com/marketplace/backend/internal/application/order"
)

// CartHandler handles cart API endpoints
type CartHandler struct {
	BaseHandler
	cartService *orderapp.CartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService *orderapp.CartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

// AddItem godoc
// @Summary      Add a variant to the cart
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        request body orderapp.AddToCartRequest true "Add to cart request"
// @Success      201 {object} dto.Response{data=orderapp.CartItemResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	var req orderapp.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.cartService.AddToCart(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, item)
}

// GetCart godoc
// @Summary      List the buyer's cart
// @Tags         cart
// @Produce      json
// @Param        X-Buyer-ID header string true "Buyer ID"
// @Success      200 {object} dto.Response{data=[]orderapp.CartItemResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	buyerID, err := getBuyerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid buyer ID")
		return
	}

	items, err := h.cartService.GetCart(c.Request.Context(), buyerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, items)
}

// ClearCart godoc
// @Summary      Empty the buyer's cart
// @Tags         cart
// @Param        X-Buyer-ID header string true "Buyer ID"
// @Success      204
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /cart [delete]
func (h *CartHandler) ClearCart(c *gin.Context) {
	buyerID, err := getBuyerID(c)
	if err != nil {
		h.BadRequest(c, "Invalid buyer ID")
		return
	}

	if err := h.cartService.ClearCart(c.Request.Context(), buyerID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
