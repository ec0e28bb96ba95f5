package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/shared"
)

// OrderStatus represents the status of a buyer order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusAtPickup  OrderStatus = "AT_PICK_UP"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// IsValid checks if the status is a known OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled,
		OrderStatusShipped, OrderStatusAtPickup, OrderStatusDelivered:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// Transitions are one-directional; only PENDING fans out, and cancellation
// is possible only while PENDING.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return target == OrderStatusPaid || target == OrderStatusFailed || target == OrderStatusCancelled
	case OrderStatusPaid:
		return target == OrderStatusShipped
	case OrderStatusShipped:
		return target == OrderStatusAtPickup || target == OrderStatusDelivered
	case OrderStatusAtPickup:
		return target == OrderStatusDelivered
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed:
		return false // Terminal states
	}
	return false
}

// IsTerminal reports whether the status is terminal
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusFailed
}

// ItemState is the lifecycle of a single order line. A single enum with an
// explicit transition table replaces independent completed/returned flags,
// which can drift into invalid combinations.
type ItemState string

const (
	ItemStateActive          ItemState = "ACTIVE"
	ItemStateReturnRequested ItemState = "RETURN_REQUESTED"
	ItemStateReturned        ItemState = "RETURNED"
	ItemStateCompleted       ItemState = "COMPLETED"
)

// CanTransitionTo checks if the item state can move to the target state
func (s ItemState) CanTransitionTo(target ItemState) bool {
	switch s {
	case ItemStateActive:
		return target == ItemStateReturnRequested || target == ItemStateCompleted
	case ItemStateReturnRequested:
		return target == ItemStateReturned || target == ItemStateActive
	case ItemStateReturned, ItemStateCompleted:
		return false // Terminal states
	}
	return false
}

// String returns the string representation of ItemState
func (s ItemState) String() string {
	return string(s)
}

// ShippingAddress is the address snapshot captured at checkout
type ShippingAddress struct {
	RecipientName string `gorm:"type:varchar(120);not null"`
	Phone         string `gorm:"type:varchar(30);not null"`
	Line1         string `gorm:"type:varchar(255);not null"`
	City          string `gorm:"type:varchar(100);not null"`
	State         string `gorm:"type:varchar(100)"`
	Country       string `gorm:"type:varchar(100);not null"`
	PostalCode    string `gorm:"type:varchar(20)"`
}

// Validate checks the fields a carrier submission needs
func (a ShippingAddress) Validate() error {
	if a.RecipientName == "" || a.Phone == "" || a.Line1 == "" || a.City == "" || a.Country == "" {
		return shared.NewDomainError("INVALID_ADDRESS", "Recipient name, phone, address line, city and country are required")
	}
	return nil
}

// OrderItem is one variant line within an order
type OrderItem struct {
	ID          uuid.UUID          `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID          `gorm:"type:uuid;not null;index"`
	VariantID   uuid.UUID          `gorm:"type:uuid;not null;index"`
	Product     catalog.ProductRef `gorm:"embedded;embeddedPrefix:product_"`
	SellerID    uuid.UUID          `gorm:"type:uuid;not null;index"`
	SKU         string             `gorm:"type:varchar(64);not null"`
	ProductName string             `gorm:"type:varchar(200);not null"`
	Quantity    int                `gorm:"not null"`
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	State       ItemState `gorm:"type:varchar(20);not null"`
	Reviewed    bool      `gorm:"not null;default:false"`
	ShipmentID  *uuid.UUID `gorm:"type:uuid;index"`
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM
func (OrderItem) TableName() string {
	return "order_items"
}

// NewOrderItem creates a new order line
func NewOrderItem(orderID uuid.UUID, variant *catalog.Variant, productName string, quantity int) (*OrderItem, error) {
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if productName == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_NAME", "Product name cannot be empty")
	}

	now := time.Now()
	unitPrice := variant.EffectivePrice()
	return &OrderItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		VariantID:   variant.ID,
		Product:     variant.Product,
		SellerID:    variant.SellerID,
		SKU:         variant.SKU,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		State:       ItemStateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// MarkDelivered stamps the delivery time. Idempotent: a second delivery
// report keeps the first timestamp.
func (i *OrderItem) MarkDelivered(at time.Time) {
	if i.DeliveredAt != nil {
		return
	}
	t := at
	i.DeliveredAt = &t
	i.UpdatedAt = time.Now()
}

// Complete finalizes the line. Requires delivery to have happened first.
func (i *OrderItem) Complete() error {
	if !i.State.CanTransitionTo(ItemStateCompleted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete item in %s state", i.State))
	}
	if i.DeliveredAt == nil {
		return shared.NewDomainError("NOT_DELIVERED", "Item cannot be completed before delivery")
	}
	i.State = ItemStateCompleted
	i.UpdatedAt = time.Now()
	return nil
}

// MarkReviewed records a buyer review; a review also finalizes the line.
func (i *OrderItem) MarkReviewed() error {
	i.Reviewed = true
	i.UpdatedAt = time.Now()
	if i.State == ItemStateActive && i.DeliveredAt != nil {
		return i.Complete()
	}
	return nil
}

// applyReturnState moves the item per the return-request mapping table
func (i *OrderItem) applyReturnState(target ItemState) error {
	if i.State == target {
		return nil
	}
	if !i.State.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Item cannot move from %s to %s", i.State, target))
	}
	i.State = target
	i.UpdatedAt = time.Now()
	return nil
}

// Order is one buyer's purchase intent, the aggregate root for checkout,
// payment and delivery tracking. Orders are never hard-deleted; the
// lifecycle is carried entirely by the status column.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber   string      `gorm:"type:varchar(50);not null;uniqueIndex"`
	BuyerID       uuid.UUID   `gorm:"type:uuid;not null;index"`
	Status        OrderStatus `gorm:"type:varchar(20);not null;index"`
	Items         []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
	ProductTotal  decimal.Decimal
	ShippingTotal decimal.Decimal
	TotalAmount   decimal.Decimal
	Address       ShippingAddress `gorm:"embedded;embeddedPrefix:address_"`
	CancelReason  string          `gorm:"type:varchar(255)"`
	PaidAt        *time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	FailedAt      *time.Time
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// NewOrder creates a new pending order
func NewOrder(orderNumber string, buyerID uuid.UUID, address ShippingAddress) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if buyerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_BUYER", "Buyer ID cannot be empty")
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		BuyerID:           buyerID,
		Status:            OrderStatusPending,
		Items:             make([]OrderItem, 0),
		ProductTotal:      decimal.Zero,
		ShippingTotal:     decimal.Zero,
		TotalAmount:       decimal.Zero,
		Address:           address,
	}
	o.AddDomainEvent(NewOrderCreatedEvent(o))
	return o, nil
}

// AddItem adds a line while the order is still pending
func (o *Order) AddItem(variant *catalog.Variant, productName string, quantity int) (*OrderItem, error) {
	if o.Status != OrderStatusPending {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add items to a non-pending order")
	}
	for _, item := range o.Items {
		if item.VariantID == variant.ID {
			return nil, shared.NewDomainError("DUPLICATE_VARIANT", "Variant already present in order")
		}
	}

	item, err := NewOrderItem(o.ID, variant, productName, quantity)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, *item)
	o.recalculateTotals()
	o.Touch()
	return item, nil
}

// SetShippingTotal sets the shipping cost total computed at checkout
func (o *Order) SetShippingTotal(total decimal.Decimal) error {
	if total.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Shipping total cannot be negative")
	}
	o.ShippingTotal = total
	o.TotalAmount = o.ProductTotal.Add(o.ShippingTotal)
	o.Touch()
	return nil
}

// MarkPaid transitions PENDING -> PAID on payment success. Stock commit is
// run by the application service in the same transaction; the status guard
// here makes the commit idempotent per order.
func (o *Order) MarkPaid() error {
	if !o.Status.CanTransitionTo(OrderStatusPaid) {
		return shared.ErrOrderNotPending
	}
	now := time.Now()
	o.Status = OrderStatusPaid
	o.PaidAt = &now
	o.Touch()
	o.AddDomainEvent(NewOrderPaidEvent(o))
	return nil
}

// MarkFailed transitions PENDING -> FAILED on payment failure
func (o *Order) MarkFailed(reason string) error {
	if !o.Status.CanTransitionTo(OrderStatusFailed) {
		return shared.ErrOrderNotPending
	}
	now := time.Now()
	o.Status = OrderStatusFailed
	o.FailedAt = &now
	o.CancelReason = reason
	o.Touch()
	o.AddDomainEvent(NewOrderFailedEvent(o, reason))
	return nil
}

// Cancel transitions PENDING -> CANCELLED (buyer cancel or expiry)
func (o *Order) Cancel(reason string) error {
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return shared.ErrOrderNotPending
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}
	now := time.Now()
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.CancelReason = reason
	o.Touch()
	o.AddDomainEvent(NewOrderCancelledEvent(o, reason))
	return nil
}

// MarkShipped transitions PAID -> SHIPPED when the carrier accepts
func (o *Order) MarkShipped() error {
	if !o.Status.CanTransitionTo(OrderStatusShipped) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot ship order in %s status", o.Status))
	}
	now := time.Now()
	o.Status = OrderStatusShipped
	o.ShippedAt = &now
	o.Touch()
	o.AddDomainEvent(NewOrderShippedEvent(o))
	return nil
}

// MarkAtPickup transitions SHIPPED -> AT_PICK_UP on the carrier milestone
func (o *Order) MarkAtPickup() error {
	if !o.Status.CanTransitionTo(OrderStatusAtPickup) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot move order in %s status to pickup", o.Status))
	}
	o.Status = OrderStatusAtPickup
	o.Touch()
	return nil
}

// MarkDelivered transitions SHIPPED/AT_PICK_UP -> DELIVERED and stamps
// delivery on the order and every item not yet delivered.
func (o *Order) MarkDelivered(at time.Time) error {
	if !o.Status.CanTransitionTo(OrderStatusDelivered) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot deliver order in %s status", o.Status))
	}
	t := at
	o.Status = OrderStatusDelivered
	o.DeliveredAt = &t
	for idx := range o.Items {
		o.Items[idx].MarkDelivered(at)
	}
	o.Touch()
	o.AddDomainEvent(NewOrderDeliveredEvent(o))
	return nil
}

// recalculateTotals recomputes the order totals from its lines
func (o *Order) recalculateTotals() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Amount)
	}
	o.ProductTotal = total
	o.TotalAmount = o.ProductTotal.Add(o.ShippingTotal)
}

// GetItem returns a line by its ID
func (o *Order) GetItem(itemID uuid.UUID) *OrderItem {
	for idx := range o.Items {
		if o.Items[idx].ID == itemID {
			return &o.Items[idx]
		}
	}
	return nil
}

// ItemsBySeller partitions the order's lines by seller, the unit of
// shipment grouping.
func (o *Order) ItemsBySeller() map[uuid.UUID][]*OrderItem {
	groups := make(map[uuid.UUID][]*OrderItem)
	for idx := range o.Items {
		item := &o.Items[idx]
		groups[item.SellerID] = append(groups[item.SellerID], item)
	}
	return groups
}

// IsPending returns true while the order awaits payment
func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// IsPaid returns true once stock has been committed
func (o *Order) IsPaid() bool {
	switch o.Status {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusAtPickup, OrderStatusDelivered:
		return true
	}
	return false
}

// PendingLongerThan reports whether the order has been pending since before
// the given cutoff, making it eligible for the expiry sweep.
func (o *Order) PendingLongerThan(cutoff time.Time) bool {
	return o.Status == OrderStatusPending && o.CreatedAt.Before(cutoff)
}

// CartItem is one row of a buyer's cart, cleared atomically with checkout
type CartItem struct {
	shared.BaseEntity
	BuyerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	VariantID uuid.UUID `gorm:"type:uuid;not null"`
	Quantity  int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartItem) TableName() string {
	return "cart_items"
}
