package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	stockapp "github.com/marketplace/backend/internal/application/stock"
)

// StockHandler handles variant and stock ledger API endpoints
type StockHandler struct {
	BaseHandler
	stockService *stockapp.StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService *stockapp.StockService) *StockHandler {
	return &StockHandler{
		stockService: stockService,
	}
}

// CreateVariant godoc
// @Summary      Register a new variant
// @Description  Create a sellable variant with its opening stock
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body stockapp.CreateVariantRequest true "Variant creation request"
// @Success      201 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/variants [post]
func (h *StockHandler) CreateVariant(c *gin.Context) {
	var req stockapp.CreateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	variant, err := h.stockService.CreateVariant(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, variant)
}

// GetVariant godoc
// @Summary      Get a variant
// @Tags         stock
// @Produce      json
// @Param        id path string true "Variant ID"
// @Success      200 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/variants/{id} [get]
func (h *StockHandler) GetVariant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return
	}

	variant, err := h.stockService.GetVariant(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, variant)
}

// GetVariantBySKU godoc
// @Summary      Get a variant by SKU
// @Tags         stock
// @Produce      json
// @Param        sku path string true "Variant SKU"
// @Success      200 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/variants/sku/{sku} [get]
func (h *StockHandler) GetVariantBySKU(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "SKU is required")
		return
	}

	variant, err := h.stockService.GetVariantBySKU(c.Request.Context(), sku)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, variant)
}

// Reserve godoc
// @Summary      Reserve stock
// @Description  Move quantity from available stock into the reserved pool
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body stockapp.StockMoveRequest true "Stock move request"
// @Success      200 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/reserve [post]
func (h *StockHandler) Reserve(c *gin.Context) {
	h.move(c, h.stockService.Reserve)
}

// Commit godoc
// @Summary      Commit reserved stock
// @Description  Convert a reservation into a permanent stock deduction
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body stockapp.StockMoveRequest true "Stock move request"
// @Success      200 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/commit [post]
func (h *StockHandler) Commit(c *gin.Context) {
	h.move(c, h.stockService.Commit)
}

// Release godoc
// @Summary      Release reserved stock
// @Description  Return a reservation to the available pool
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body stockapp.StockMoveRequest true "Stock move request"
// @Success      200 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/release [post]
func (h *StockHandler) Release(c *gin.Context) {
	h.move(c, h.stockService.Release)
}

// Restock godoc
// @Summary      Restock returned goods
// @Description  Add returned quantity back to available stock
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body stockapp.StockMoveRequest true "Stock move request"
// @Success      200 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/restock [post]
func (h *StockHandler) Restock(c *gin.Context) {
	h.move(c, h.stockService.Restock)
}

// AddStock godoc
// @Summary      Add stock
// @Description  Increase available stock from a seller replenishment
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body stockapp.StockMoveRequest true "Stock move request"
// @Success      200 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/add [post]
func (h *StockHandler) AddStock(c *gin.Context) {
	h.move(c, h.stockService.AddStock)
}

// SetPriceOverride godoc
// @Summary      Set or clear a variant price override
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        id path string true "Variant ID"
// @Param        request body stockapp.PriceOverrideRequest true "Price override request"
// @Success      200 {object} dto.Response{data=stockapp.VariantResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/variants/{id}/price-override [put]
func (h *StockHandler) SetPriceOverride(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return
	}

	var req stockapp.PriceOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	variant, err := h.stockService.SetPriceOverride(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, variant)
}

// GetProductIndex godoc
// @Summary      Get the denormalized product stock total
// @Tags         stock
// @Produce      json
// @Param        kind path string true "Product kind"
// @Param        id path string true "Product ID"
// @Success      200 {object} dto.Response{data=stockapp.ProductIndexResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/products/{kind}/{id}/index [get]
func (h *StockHandler) GetProductIndex(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	index, err := h.stockService.GetProductIndex(c.Request.Context(), c.Param("kind"), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, index)
}

// move binds a stock move request and applies the given ledger operation
func (h *StockHandler) move(c *gin.Context, op func(context.Context, stockapp.StockMoveRequest) (*stockapp.VariantResponse, error)) {
	var req stockapp.StockMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	variant, err := op(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, variant)
}
