package catalog

import (
	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeVariant = "Variant"

// Event type constants
const (
	EventTypeStockReserved    = "StockReserved"
	EventTypeStockCommitted   = "StockCommitted"
	EventTypeStockReleased    = "StockReleased"
	EventTypeStockRestocked   = "StockRestocked"
	EventTypeReservationDrift = "ReservationDrift"
)

// stockEvent carries the fields shared by every ledger event
type stockEvent struct {
	shared.BaseDomainEvent
	VariantID        uuid.UUID   `json:"variant_id"`
	SKU              string      `json:"sku"`
	Product          ProductRef  `json:"product"`
	SellerID         uuid.UUID   `json:"seller_id"`
	Quantity         int         `json:"quantity"`
	StockQuantity    int         `json:"stock_quantity"`
	ReservedQuantity int         `json:"reserved_quantity"`
}

func newStockEvent(eventType string, v *Variant, qty int) stockEvent {
	return stockEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(eventType, AggregateTypeVariant, v.ID),
		VariantID:        v.ID,
		SKU:              v.SKU,
		Product:          v.Product,
		SellerID:         v.SellerID,
		Quantity:         qty,
		StockQuantity:    v.StockQuantity,
		ReservedQuantity: v.ReservedQuantity,
	}
}

// StockReservedEvent is raised when checkout places a hold on stock
type StockReservedEvent struct {
	stockEvent
}

// NewStockReservedEvent creates a new StockReservedEvent
func NewStockReservedEvent(v *Variant, qty int) *StockReservedEvent {
	return &StockReservedEvent{stockEvent: newStockEvent(EventTypeStockReserved, v, qty)}
}

// StockCommittedEvent is raised when payment success converts a hold into a sale
type StockCommittedEvent struct {
	stockEvent
}

// NewStockCommittedEvent creates a new StockCommittedEvent
func NewStockCommittedEvent(v *Variant, qty int) *StockCommittedEvent {
	return &StockCommittedEvent{stockEvent: newStockEvent(EventTypeStockCommitted, v, qty)}
}

// StockReleasedEvent is raised when a hold is returned to the available pool
type StockReleasedEvent struct {
	stockEvent
}

// NewStockReleasedEvent creates a new StockReleasedEvent
func NewStockReleasedEvent(v *Variant, qty int) *StockReleasedEvent {
	return &StockReleasedEvent{stockEvent: newStockEvent(EventTypeStockReleased, v, qty)}
}

// StockRestockedEvent is raised when a completed return restores owned stock
type StockRestockedEvent struct {
	stockEvent
}

// NewStockRestockedEvent creates a new StockRestockedEvent
func NewStockRestockedEvent(v *Variant, qty int) *StockRestockedEvent {
	return &StockRestockedEvent{stockEvent: newStockEvent(EventTypeStockRestocked, v, qty)}
}

// ReservationDriftEvent is raised when a release had to be clamped because
// the reserved counter was lower than the quantity being released. It is a
// data-integrity signal, logged as a warning by its consumer.
type ReservationDriftEvent struct {
	stockEvent
	RequestedQuantity int `json:"requested_quantity"`
}

// NewReservationDriftEvent creates a new ReservationDriftEvent
func NewReservationDriftEvent(v *Variant, requested, released int) *ReservationDriftEvent {
	return &ReservationDriftEvent{
		stockEvent:        newStockEvent(EventTypeReservationDrift, v, released),
		RequestedQuantity: requested,
	}
}
