package logistics

import (
	"github.com/marketplace/backend/internal/domain/shared"
)

// Shipment domain event types
const (
	EventTypeShipmentCreated       = "shipment.created"
	EventTypeShipmentStatusChanged = "shipment.status_changed"
	EventTypeShipmentDelivered     = "shipment.delivered"
	EventTypeShipmentAutoCompleted = "shipment.auto_completed"
	EventTypeDeliveryReminderDue   = "shipment.reminder_due"
)

type shipmentEvent struct {
	shared.BaseDomainEvent
	OrderID  string `json:"order_id"`
	SellerID string `json:"seller_id"`
	Waybill  string `json:"waybill,omitempty"`
}

func newShipmentEvent(eventType string, s *Shipment) shipmentEvent {
	return shipmentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Shipment", s.ID),
		OrderID:         s.OrderID.String(),
		SellerID:        s.SellerID.String(),
		Waybill:         s.Waybill,
	}
}

// ShipmentCreatedEvent is raised when a seller's shipment is carved out of an order
type ShipmentCreatedEvent struct {
	shipmentEvent
	Provider  string `json:"provider"`
	ItemCount int    `json:"item_count"`
}

// NewShipmentCreatedEvent creates a new shipment created event
func NewShipmentCreatedEvent(s *Shipment) *ShipmentCreatedEvent {
	return &ShipmentCreatedEvent{
		shipmentEvent: newShipmentEvent(EventTypeShipmentCreated, s),
		Provider:      s.Provider,
		ItemCount:     s.ItemCount,
	}
}

// ShipmentStatusChangedEvent is raised when a carrier status advances the shipment
type ShipmentStatusChangedEvent struct {
	shipmentEvent
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
}

// NewShipmentStatusChangedEvent creates a new status changed event
func NewShipmentStatusChangedEvent(s *Shipment, previous ShipmentStatus) *ShipmentStatusChangedEvent {
	return &ShipmentStatusChangedEvent{
		shipmentEvent:  newShipmentEvent(EventTypeShipmentStatusChanged, s),
		PreviousStatus: previous.String(),
		NewStatus:      s.Status.String(),
	}
}

// ShipmentDeliveredEvent is raised the first time a delivered status lands
type ShipmentDeliveredEvent struct {
	shipmentEvent
	DeliveredAt string `json:"delivered_at"`
}

// NewShipmentDeliveredEvent creates a new shipment delivered event
func NewShipmentDeliveredEvent(s *Shipment) *ShipmentDeliveredEvent {
	e := &ShipmentDeliveredEvent{
		shipmentEvent: newShipmentEvent(EventTypeShipmentDelivered, s),
	}
	if s.DeliveredAt != nil {
		e.DeliveredAt = s.DeliveredAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return e
}

// ShipmentAutoCompletedEvent is raised when the post-delivery grace window
// expires and the shipment is finalized on the buyer's behalf.
type ShipmentAutoCompletedEvent struct {
	shipmentEvent
}

// NewShipmentAutoCompletedEvent creates a new auto-completed event
func NewShipmentAutoCompletedEvent(s *Shipment) *ShipmentAutoCompletedEvent {
	return &ShipmentAutoCompletedEvent{
		shipmentEvent: newShipmentEvent(EventTypeShipmentAutoCompleted, s),
	}
}

// DeliveryReminderDueEvent is raised once per reminder window per shipment
type DeliveryReminderDueEvent struct {
	shipmentEvent
	Window string `json:"window"`
}

// NewDeliveryReminderDueEvent creates a new reminder due event
func NewDeliveryReminderDueEvent(s *Shipment, w ReminderWindow) *DeliveryReminderDueEvent {
	return &DeliveryReminderDueEvent{
		shipmentEvent: newShipmentEvent(EventTypeDeliveryReminderDue, s),
		Window:        string(w),
	}
}
