package order

import (
	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeReturnRequest = "ReturnRequest"

// Event type constants
const (
	EventTypeReturnRequested = "ReturnRequested"
	EventTypeReturnApproved  = "ReturnApproved"
	EventTypeReturnRejected  = "ReturnRejected"
	EventTypeReturnCompleted = "ReturnCompleted"
)

// returnEvent carries the fields shared by every return event
type returnEvent struct {
	shared.BaseDomainEvent
	ReturnID    uuid.UUID `json:"return_id"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	VariantID   uuid.UUID `json:"variant_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
}

func newReturnEvent(eventType string, r *ReturnRequest, item *OrderItem) returnEvent {
	return returnEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeReturnRequest, r.ID),
		ReturnID:        r.ID,
		OrderID:         r.OrderID,
		OrderItemID:     r.OrderItemID,
		VariantID:       item.VariantID,
		SellerID:        item.SellerID,
		BuyerID:         r.BuyerID,
		Quantity:        item.Quantity,
		Reason:          r.Reason,
	}
}

// ReturnRequestedEvent is raised when a buyer opens a return dispute
type ReturnRequestedEvent struct{ returnEvent }

// NewReturnRequestedEvent creates a new ReturnRequestedEvent
func NewReturnRequestedEvent(r *ReturnRequest, item *OrderItem) *ReturnRequestedEvent {
	return &ReturnRequestedEvent{newReturnEvent(EventTypeReturnRequested, r, item)}
}

// ReturnApprovedEvent is raised when the seller accepts the dispute
type ReturnApprovedEvent struct{ returnEvent }

// NewReturnApprovedEvent creates a new ReturnApprovedEvent
func NewReturnApprovedEvent(r *ReturnRequest, item *OrderItem) *ReturnApprovedEvent {
	return &ReturnApprovedEvent{newReturnEvent(EventTypeReturnApproved, r, item)}
}

// ReturnRejectedEvent is raised when the seller rejects the dispute
type ReturnRejectedEvent struct{ returnEvent }

// NewReturnRejectedEvent creates a new ReturnRejectedEvent
func NewReturnRejectedEvent(r *ReturnRequest, item *OrderItem) *ReturnRejectedEvent {
	return &ReturnRejectedEvent{newReturnEvent(EventTypeReturnRejected, r, item)}
}

// ReturnCompletedEvent is raised when the goods arrive back and stock is
// restored. It also drives seller payout adjustment downstream.
type ReturnCompletedEvent struct{ returnEvent }

// NewReturnCompletedEvent creates a new ReturnCompletedEvent
func NewReturnCompletedEvent(r *ReturnRequest, item *OrderItem) *ReturnCompletedEvent {
	return &ReturnCompletedEvent{newReturnEvent(EventTypeReturnCompleted, r, item)}
}
