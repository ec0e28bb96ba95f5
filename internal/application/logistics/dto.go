package logistics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/logistics"
)

// ShipmentResponse is a shipment in API responses
type ShipmentResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	Provider        string          `json:"provider"`
	Waybill         string          `json:"waybill,omitempty"`
	Status          string          `json:"status"`
	ItemCount       int             `json:"item_count"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	TotalWeightKg   decimal.Decimal `json:"total_weight_kg"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	ReceiverAddress string          `json:"receiver_address,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	AutoCompletion  bool            `json:"auto_completion"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToShipmentResponse converts a shipment to its response form
func ToShipmentResponse(s *logistics.Shipment) ShipmentResponse {
	return ShipmentResponse{
		ID:              s.ID,
		OrderID:         s.OrderID,
		SellerID:        s.SellerID,
		Provider:        s.Provider,
		Waybill:         s.Waybill,
		Status:          s.Status.String(),
		ItemCount:       s.ItemCount,
		TotalPrice:      s.TotalPrice,
		TotalWeightKg:   s.TotalWeightKg,
		ShippingCost:    s.ShippingCost,
		ReceiverAddress: s.ReceiverAddress,
		DeliveredAt:     s.DeliveredAt,
		AutoCompletion:  s.AutoCompletion,
		CreatedAt:       s.CreatedAt,
	}
}

// ShipmentSubmitResult is the outcome of submitting one shipment to the
// carrier. Error is empty on success.
type ShipmentSubmitResult struct {
	ShipmentID uuid.UUID `json:"shipment_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	Waybill    string    `json:"waybill,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// SubmitShipmentsResult is the aggregate outcome of a per-order carrier
// submission. AllSucceeded is true only when every shipment got a waybill;
// the order moves to SHIPPED only then.
type SubmitShipmentsResult struct {
	OrderID      uuid.UUID              `json:"order_id"`
	AllSucceeded bool                   `json:"all_succeeded"`
	Results      []ShipmentSubmitResult `json:"results"`
}

// CarrierWebhookPayload is the decrypted carrier status notification
type CarrierWebhookPayload struct {
	Waybill    string `json:"waybill"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
	Location   string `json:"location,omitempty"`
	OccurredAt string `json:"occurred_at,omitempty"`
}
