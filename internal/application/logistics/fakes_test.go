package logistics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// MockEventPublisher captures published events for assertions
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// fakeShipmentRepo is an in-memory logistics.ShipmentRepository
type fakeShipmentRepo struct {
	mu        sync.Mutex
	shipments map[uuid.UUID]*logistics.Shipment
}

func newFakeShipmentRepo() *fakeShipmentRepo {
	return &fakeShipmentRepo{shipments: make(map[uuid.UUID]*logistics.Shipment)}
}

func copyShipment(sh *logistics.Shipment) *logistics.Shipment {
	copied := *sh
	return &copied
}

func (r *fakeShipmentRepo) FindByID(_ context.Context, id uuid.UUID) (*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shipments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyShipment(sh), nil
}

func (r *fakeShipmentRepo) FindByWaybill(_ context.Context, waybill string) (*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sh := range r.shipments {
		if sh.Waybill == waybill {
			return copyShipment(sh), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeShipmentRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*logistics.Shipment, 0)
	for _, sh := range r.shipments {
		if sh.OrderID == orderID {
			result = append(result, copyShipment(sh))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *fakeShipmentRepo) FindDeliveredBefore(_ context.Context, cutoff time.Time, limit int) ([]*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*logistics.Shipment, 0)
	for _, sh := range r.shipments {
		if sh.AutoCompletion || sh.DeliveredAt == nil {
			continue
		}
		if !sh.DeliveredAt.After(cutoff) {
			result = append(result, copyShipment(sh))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DeliveredAt.Before(*result[j].DeliveredAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeShipmentRepo) FindDeliveredPendingReminders(_ context.Context, limit int) ([]*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*logistics.Shipment, 0)
	for _, sh := range r.shipments {
		if sh.AutoCompletion || sh.DeliveredAt == nil {
			continue
		}
		if sh.Reminder2hSent && sh.Reminder24hSent && sh.Reminder48hSent {
			continue
		}
		result = append(result, copyShipment(sh))
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeShipmentRepo) Save(_ context.Context, sh *logistics.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipments[sh.ID] = copyShipment(sh)
	return nil
}

func (r *fakeShipmentRepo) DeleteByOrder(_ context.Context, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sh := range r.shipments {
		if sh.OrderID == orderID {
			delete(r.shipments, id)
		}
	}
	return nil
}

func (r *fakeShipmentRepo) DeleteByOrders(_ context.Context, orderIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uuid.UUID]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = struct{}{}
	}
	for id, sh := range r.shipments {
		if _, ok := wanted[sh.OrderID]; ok {
			delete(r.shipments, id)
		}
	}
	return nil
}

// fakeOrderRepo is an in-memory order.OrderRepository
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*order.Order)}
}

func copyOrder(o *order.Order) *order.Order {
	copied := *o
	copied.Items = make([]order.OrderItem, len(o.Items))
	copy(copied.Items, o.Items)
	return &copied
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r *fakeOrderRepo) FindByOrderNumber(_ context.Context, orderNumber string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			return copyOrder(o), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOrderRepo) FindByBuyer(_ context.Context, buyerID uuid.UUID, _ shared.Filter) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]order.Order, 0)
	for _, o := range r.orders {
		if o.BuyerID == buyerID {
			result = append(result, *copyOrder(o))
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) FindPendingOlderThan(_ context.Context, cutoff time.Time, limit int) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]order.Order, 0)
	for _, o := range r.orders {
		if o.Status == order.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			result = append(result, *copyOrder(o))
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeOrderRepo) FindItemByID(_ context.Context, itemID uuid.UUID) (*order.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		for idx := range o.Items {
			if o.Items[idx].ID == itemID {
				copied := o.Items[idx]
				return &copied, nil
			}
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOrderRepo) Save(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = copyOrder(o)
	return nil
}

func (r *fakeOrderRepo) SaveItem(_ context.Context, item *order.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[item.OrderID]
	if !ok {
		return shared.ErrNotFound
	}
	for idx := range o.Items {
		if o.Items[idx].ID == item.ID {
			o.Items[idx] = *item
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *fakeOrderRepo) BulkCompleteItems(_ context.Context, itemIDs []uuid.UUID, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uuid.UUID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = struct{}{}
	}
	completed := 0
	for _, o := range r.orders {
		for idx := range o.Items {
			item := &o.Items[idx]
			if _, ok := wanted[item.ID]; !ok {
				continue
			}
			if item.State != order.ItemStateActive {
				continue
			}
			item.State = order.ItemStateCompleted
			item.UpdatedAt = at
			completed++
		}
	}
	return completed, nil
}

func (r *fakeOrderRepo) BulkCancelPending(_ context.Context, orderIDs []uuid.UUID, reason string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, id := range orderIDs {
		o, ok := r.orders[id]
		if !ok || o.Status != order.OrderStatusPending {
			continue
		}
		o.Status = order.OrderStatusCancelled
		cancelledAt := at
		o.CancelledAt = &cancelledAt
		o.CancelReason = reason
		o.UpdatedAt = at
		count++
	}
	return count, nil
}

// fakeCarrierClient issues deterministic waybills and can be told to
// reject specific shipments
type fakeCarrierClient struct {
	mu       sync.Mutex
	next     int
	failFor  map[uuid.UUID]error
	requests []ShipmentSubmission
}

func newFakeCarrierClient() *fakeCarrierClient {
	return &fakeCarrierClient{failFor: make(map[uuid.UUID]error)}
}

func (c *fakeCarrierClient) CreateWaybill(_ context.Context, submission ShipmentSubmission) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, submission)
	if err, ok := c.failFor[submission.ShipmentID]; ok {
		return "", err
	}
	c.next++
	return fmt.Sprintf("WB-%04d", c.next), nil
}

// passthroughDecrypter returns the envelope as-is, or an error when armed
type passthroughDecrypter struct {
	err error
}

func (d *passthroughDecrypter) Decrypt(envelope []byte) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return envelope, nil
}

// fakeIdempotencyStore is an in-memory shared.IdempotencyStore
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]struct{})}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok, nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }
