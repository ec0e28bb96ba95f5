package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/catalog"
)

// VariantResponse represents a variant with its ledger state in API responses
type VariantResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProductKind       string          `json:"product_kind"`
	ProductID         uuid.UUID       `json:"product_id"`
	ShopID            uuid.UUID       `json:"shop_id"`
	SellerID          uuid.UUID       `json:"seller_id"`
	SKU               string          `json:"sku"`
	Color             string          `json:"color,omitempty"`
	Size              string          `json:"size,omitempty"`
	StockQuantity     int             `json:"stock_quantity"`
	ReservedQuantity  int             `json:"reserved_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	BasePrice         decimal.Decimal `json:"base_price"`
	PriceOverride     *decimal.Decimal `json:"price_override,omitempty"`
	EffectivePrice    decimal.Decimal `json:"effective_price"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// ToVariantResponse converts a variant to its response form
func ToVariantResponse(v *catalog.Variant) VariantResponse {
	return VariantResponse{
		ID:                v.ID,
		ProductKind:       v.Product.Kind.String(),
		ProductID:         v.Product.ID,
		ShopID:            v.ShopID,
		SellerID:          v.SellerID,
		SKU:               v.SKU,
		Color:             v.Color,
		Size:              v.Size,
		StockQuantity:     v.StockQuantity,
		ReservedQuantity:  v.ReservedQuantity,
		AvailableQuantity: v.Available(),
		BasePrice:         v.BasePrice,
		PriceOverride:     v.PriceOverride,
		EffectivePrice:    v.EffectivePrice(),
		UpdatedAt:         v.UpdatedAt,
		Version:           v.GetVersion(),
	}
}

// CreateVariantRequest represents a request to register a new variant
type CreateVariantRequest struct {
	ProductKind string          `json:"product_kind" binding:"required"`
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	ShopID      uuid.UUID       `json:"shop_id" binding:"required"`
	SellerID    uuid.UUID       `json:"seller_id" binding:"required"`
	SKU         string          `json:"sku" binding:"required,max=64"`
	ProductName string          `json:"product_name" binding:"required,max=200"`
	Color       string          `json:"color" binding:"max=50"`
	Size        string          `json:"size" binding:"max=50"`
	BasePrice   decimal.Decimal `json:"base_price" binding:"required"`
	Quantity    int             `json:"quantity" binding:"min=0"`
}

// StockMoveRequest represents a single ledger movement on one variant
type StockMoveRequest struct {
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// PriceOverrideRequest sets or clears a variant price override
type PriceOverrideRequest struct {
	Price *decimal.Decimal `json:"price"`
}

// ProductIndexResponse is the denormalized per-product total
type ProductIndexResponse struct {
	ProductKind   string    `json:"product_kind"`
	ProductID     uuid.UUID `json:"product_id"`
	TotalQuantity int       `json:"total_quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}
