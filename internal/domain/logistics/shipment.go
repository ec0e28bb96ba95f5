package logistics

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/shared"
)

// ShipmentStatus is the carrier-domain status of a shipment. Statuses are
// ordered; a shipment never regresses through the carrier state graph.
type ShipmentStatus string

const (
	ShipmentStatusPending       ShipmentStatus = "PENDING_SUBMISSION"
	ShipmentStatusInitiated     ShipmentStatus = "INITIATED"
	ShipmentStatusPickedUp      ShipmentStatus = "PICKED_UP"
	ShipmentStatusInTransit     ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusAtPickupPoint ShipmentStatus = "AT_PICKUP_POINT"
	ShipmentStatusOutForDelivery ShipmentStatus = "OUT_FOR_DELIVERY"
	ShipmentStatusDelivered     ShipmentStatus = "DELIVERED"
	ShipmentStatusFailed        ShipmentStatus = "DELIVERY_FAILED"
)

// statusRank orders the carrier state graph. Failed sits alongside
// Delivered as a terminal rank.
var statusRank = map[ShipmentStatus]int{
	ShipmentStatusPending:        0,
	ShipmentStatusInitiated:      1,
	ShipmentStatusPickedUp:       2,
	ShipmentStatusInTransit:      3,
	ShipmentStatusAtPickupPoint:  4,
	ShipmentStatusOutForDelivery: 5,
	ShipmentStatusDelivered:      6,
	ShipmentStatusFailed:         6,
}

// IsValid checks if the status is a known ShipmentStatus
func (s ShipmentStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// String returns the string representation of ShipmentStatus
func (s ShipmentStatus) String() string {
	return string(s)
}

// Rank returns the position of the status in the carrier state graph
func (s ShipmentStatus) Rank() int {
	return statusRank[s]
}

// IsDelivered reports whether the status is a delivered status
func (s ShipmentStatus) IsDelivered() bool {
	return s == ShipmentStatusDelivered
}

// ReminderWindow identifies one of the fixed post-delivery reminder windows
type ReminderWindow string

const (
	ReminderWindow2h  ReminderWindow = "2H"
	ReminderWindow24h ReminderWindow = "24H"
	ReminderWindow48h ReminderWindow = "48H"
)

// Offset returns the duration after delivery at which the window opens
func (w ReminderWindow) Offset() (time.Duration, error) {
	switch w {
	case ReminderWindow2h:
		return 2 * time.Hour, nil
	case ReminderWindow24h:
		return 24 * time.Hour, nil
	case ReminderWindow48h:
		return 48 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown reminder window %q", w)
}

// AllReminderWindows returns the reminder windows in order
func AllReminderWindows() []ReminderWindow {
	return []ReminderWindow{ReminderWindow2h, ReminderWindow24h, ReminderWindow48h}
}

// Shipment groups one seller's items within one order for the carrier.
// It is owned by the order; items keep a shared reference to it.
type Shipment struct {
	shared.BaseAggregateRoot
	OrderID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	SellerID       uuid.UUID      `gorm:"type:uuid;not null;index"`
	Provider       string         `gorm:"type:varchar(50);not null"`
	Waybill        string         `gorm:"type:varchar(100);index"`
	Status         ShipmentStatus `gorm:"type:varchar(30);not null"`
	ItemCount      int            `gorm:"not null"`
	TotalPrice     decimal.Decimal
	TotalWeightKg  decimal.Decimal
	ShippingCost   decimal.Decimal
	SenderAddress  string `gorm:"type:varchar(500)"`
	ReceiverAddress string `gorm:"type:varchar(500)"`
	DeliveredAt    *time.Time
	AutoCompletion  bool `gorm:"not null;default:false"`
	Reminder2hSent  bool `gorm:"column:reminder_2h_sent;not null;default:false"`
	Reminder24hSent bool `gorm:"column:reminder_24h_sent;not null;default:false"`
	Reminder48hSent bool `gorm:"column:reminder_48h_sent;not null;default:false"`
}

// TableName returns the table name for GORM
func (Shipment) TableName() string {
	return "shipments"
}

// NewShipment creates a shipment for one seller's slice of an order
func NewShipment(orderID, sellerID uuid.UUID, provider string) (*Shipment, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if sellerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SELLER", "Seller ID cannot be empty")
	}
	if provider == "" {
		return nil, shared.NewDomainError("INVALID_PROVIDER", "Carrier provider is required")
	}

	s := &Shipment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           orderID,
		SellerID:          sellerID,
		Provider:          provider,
		Status:            ShipmentStatusPending,
	}
	s.AddDomainEvent(NewShipmentCreatedEvent(s))
	return s, nil
}

// AttachWaybill records the carrier-issued tracking identifier and marks
// the shipment initiated. Called once after a successful carrier submission.
func (s *Shipment) AttachWaybill(waybill string) error {
	if waybill == "" {
		return shared.NewDomainError("INVALID_WAYBILL", "Waybill cannot be empty")
	}
	if s.Waybill != "" {
		return shared.NewDomainError("INVALID_STATE", "Shipment already has a waybill")
	}
	s.Waybill = waybill
	s.Touch()
	s.IncrementVersion()
	return s.applyStatus(ShipmentStatusInitiated, time.Now())
}

// ApplyStatus applies a carrier-reported status. Repeat delivery of the
// same webhook and regressions through the state graph are no-ops; the
// returned bool says whether anything changed.
func (s *Shipment) ApplyStatus(status ShipmentStatus, at time.Time) (bool, error) {
	if !status.IsValid() {
		return false, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown shipment status %q", status))
	}
	if status == s.Status || status.Rank() <= s.Status.Rank() {
		return false, nil
	}
	return true, s.applyStatus(status, at)
}

func (s *Shipment) applyStatus(status ShipmentStatus, at time.Time) error {
	previous := s.Status
	s.Status = status
	s.Touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewShipmentStatusChangedEvent(s, previous))

	if status.IsDelivered() && s.DeliveredAt == nil {
		t := at
		s.DeliveredAt = &t
		s.AddDomainEvent(NewShipmentDeliveredEvent(s))
	}
	return nil
}

// EligibleForAutoCompletion reports whether the buyer-protection timer has
// run out: delivered longer ago than the grace window and not yet finalized.
func (s *Shipment) EligibleForAutoCompletion(grace time.Duration, now time.Time) bool {
	return !s.AutoCompletion &&
		s.DeliveredAt != nil &&
		now.Sub(*s.DeliveredAt) >= grace
}

// MarkAutoCompleted sets the auto-completion flag. It is set at most once.
func (s *Shipment) MarkAutoCompleted() error {
	if s.AutoCompletion {
		return shared.NewDomainError("INVALID_STATE", "Shipment already auto-completed")
	}
	if s.DeliveredAt == nil {
		return shared.NewDomainError("NOT_DELIVERED", "Shipment cannot auto-complete before delivery")
	}
	s.AutoCompletion = true
	s.Touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewShipmentAutoCompletedEvent(s))
	return nil
}

// ReminderSent reports whether the window's reminder already went out
func (s *Shipment) ReminderSent(w ReminderWindow) bool {
	switch w {
	case ReminderWindow2h:
		return s.Reminder2hSent
	case ReminderWindow24h:
		return s.Reminder24hSent
	case ReminderWindow48h:
		return s.Reminder48hSent
	}
	return false
}

// MarkReminderSent flags a reminder window as handled; each fires once
func (s *Shipment) MarkReminderSent(w ReminderWindow) error {
	if s.ReminderSent(w) {
		return nil
	}
	switch w {
	case ReminderWindow2h:
		s.Reminder2hSent = true
	case ReminderWindow24h:
		s.Reminder24hSent = true
	case ReminderWindow48h:
		s.Reminder48hSent = true
	default:
		return shared.NewDomainError("INVALID_WINDOW", fmt.Sprintf("Unknown reminder window %q", w))
	}
	s.Touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewDeliveryReminderDueEvent(s, w))
	return nil
}

// ReminderWindowOpen reports whether the window has opened without its
// reminder having been sent.
func (s *Shipment) ReminderWindowOpen(w ReminderWindow, now time.Time) bool {
	if s.DeliveredAt == nil || s.AutoCompletion || s.ReminderSent(w) {
		return false
	}
	offset, err := w.Offset()
	if err != nil {
		return false
	}
	return now.Sub(*s.DeliveredAt) >= offset
}
