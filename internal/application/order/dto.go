package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/order"
)

// CheckoutItemRequest is one variant line in a checkout request
type CheckoutItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// ShippingAddressRequest is the address captured at checkout
type ShippingAddressRequest struct {
	RecipientName string `json:"recipient_name" binding:"required,max=120"`
	Phone         string `json:"phone" binding:"required,max=30"`
	Line1         string `json:"line1" binding:"required,max=255"`
	City          string `json:"city" binding:"required,max=100"`
	State         string `json:"state" binding:"max=100"`
	Country       string `json:"country" binding:"required,max=100"`
	PostalCode    string `json:"postal_code" binding:"max=20"`
}

func (r ShippingAddressRequest) toDomain() order.ShippingAddress {
	return order.ShippingAddress{
		RecipientName: r.RecipientName,
		Phone:         r.Phone,
		Line1:         r.Line1,
		City:          r.City,
		State:         r.State,
		Country:       r.Country,
		PostalCode:    r.PostalCode,
	}
}

// CheckoutRequest creates a pending order. Items may come from the request
// body or, when FromCart is set, from the buyer's stored cart.
type CheckoutRequest struct {
	BuyerID  uuid.UUID              `json:"buyer_id" binding:"required"`
	Items    []CheckoutItemRequest  `json:"items" binding:"omitempty,dive"`
	FromCart bool                   `json:"from_cart"`
	Address  ShippingAddressRequest `json:"address" binding:"required"`
}

// CancelOrderRequest carries the buyer's cancellation reason
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// FailOrderRequest carries the payment failure reason
type FailOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ReturnRequestCreate opens a return dispute on a delivered item
type ReturnRequestCreate struct {
	BuyerID uuid.UUID `json:"buyer_id" binding:"required"`
	Reason  string    `json:"reason" binding:"required,max=500"`
}

// AddToCartRequest puts a variant in the buyer's cart
type AddToCartRequest struct {
	BuyerID   uuid.UUID `json:"buyer_id" binding:"required"`
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// OrderItemResponse is one order line in API responses
type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	ProductKind string          `json:"product_kind"`
	ProductID   uuid.UUID       `json:"product_id"`
	SellerID    uuid.UUID       `json:"seller_id"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	State       string          `json:"state"`
	Reviewed    bool            `json:"reviewed"`
	ShipmentID  *uuid.UUID      `json:"shipment_id,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// OrderResponse is an order in API responses
type OrderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	Status        string              `json:"status"`
	Items         []OrderItemResponse `json:"items"`
	ProductTotal  decimal.Decimal     `json:"product_total"`
	ShippingTotal decimal.Decimal     `json:"shipping_total"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	CancelReason  string              `json:"cancel_reason,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	ShippedAt     *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ToOrderResponse converts an order to its response form
func ToOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for idx := range o.Items {
		items = append(items, ToOrderItemResponse(&o.Items[idx]))
	}
	return OrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		BuyerID:       o.BuyerID,
		Status:        o.Status.String(),
		Items:         items,
		ProductTotal:  o.ProductTotal,
		ShippingTotal: o.ShippingTotal,
		TotalAmount:   o.TotalAmount,
		CancelReason:  o.CancelReason,
		PaidAt:        o.PaidAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
		CreatedAt:     o.CreatedAt,
	}
}

// ToOrderItemResponse converts an order line to its response form
func ToOrderItemResponse(item *order.OrderItem) OrderItemResponse {
	return OrderItemResponse{
		ID:          item.ID,
		VariantID:   item.VariantID,
		ProductKind: item.Product.Kind.String(),
		ProductID:   item.Product.ID,
		SellerID:    item.SellerID,
		SKU:         item.SKU,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Amount:      item.Amount,
		State:       item.State.String(),
		Reviewed:    item.Reviewed,
		ShipmentID:  item.ShipmentID,
		DeliveredAt: item.DeliveredAt,
	}
}

// ReturnRequestResponse is a return request in API responses
type ReturnRequestResponse struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	OrderItemID uuid.UUID  `json:"order_item_id"`
	BuyerID     uuid.UUID  `json:"buyer_id"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToReturnRequestResponse converts a return request to its response form
func ToReturnRequestResponse(r *order.ReturnRequest) ReturnRequestResponse {
	return ReturnRequestResponse{
		ID:          r.ID,
		OrderID:     r.OrderID,
		OrderItemID: r.OrderItemID,
		BuyerID:     r.BuyerID,
		Status:      r.Status.String(),
		Reason:      r.Reason,
		ProcessedAt: r.ProcessedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// CartItemResponse is one cart row in API responses
type CartItemResponse struct {
	ID        uuid.UUID `json:"id"`
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}
