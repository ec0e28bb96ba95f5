package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// MockEventPublisher collects published events for assertions
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

// fakeVariantRepo is an in-memory catalog.VariantRepository
type fakeVariantRepo struct {
	mu       sync.Mutex
	variants map[uuid.UUID]*catalog.Variant
}

func newFakeVariantRepo() *fakeVariantRepo {
	return &fakeVariantRepo{variants: make(map[uuid.UUID]*catalog.Variant)}
}

func (r *fakeVariantRepo) FindByID(_ context.Context, id uuid.UUID) (*catalog.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *fakeVariantRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Variant, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeVariantRepo) FindBySKU(_ context.Context, sku string) (*catalog.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.variants {
		if v.SKU == sku {
			copied := *v
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeVariantRepo) FindByProduct(_ context.Context, product catalog.ProductRef) ([]catalog.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]catalog.Variant, 0)
	for _, v := range r.variants {
		if v.Product == product {
			result = append(result, *v)
		}
	}
	return result, nil
}

func (r *fakeVariantRepo) Save(_ context.Context, v *catalog.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *v
	r.variants[v.ID] = &copied
	return nil
}

func (r *fakeVariantRepo) SumQuantityByProduct(_ context.Context, product catalog.ProductRef) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, v := range r.variants {
		if v.Product == product {
			total += v.StockQuantity + v.ReservedQuantity
		}
	}
	return total, nil
}

// fakeIndexRepo is an in-memory catalog.ProductIndexRepository
type fakeIndexRepo struct {
	mu      sync.Mutex
	indexes map[string]*catalog.ProductIndex
}

func newFakeIndexRepo() *fakeIndexRepo {
	return &fakeIndexRepo{indexes: make(map[string]*catalog.ProductIndex)}
}

func (r *fakeIndexRepo) Upsert(_ context.Context, index *catalog.ProductIndex) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *index
	r.indexes[index.Product.String()] = &copied
	return nil
}

func (r *fakeIndexRepo) Find(_ context.Context, product catalog.ProductRef) (*catalog.ProductIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	index, ok := r.indexes[product.String()]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *index
	return &copied, nil
}

// fakeOrderRepo is an in-memory order.OrderRepository
type fakeOrderRepo struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]*order.Order
	bulkCancels int
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
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
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
		if len(result) >= limit {
			break
		}
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

func (r *fakeOrderRepo) BulkCompleteItems(_ context.Context, itemIDs []uuid.UUID, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uuid.UUID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = struct{}{}
	}
	count := 0
	for _, o := range r.orders {
		for idx := range o.Items {
			if _, ok := wanted[o.Items[idx].ID]; ok && o.Items[idx].State == order.ItemStateActive {
				o.Items[idx].State = order.ItemStateCompleted
				count++
			}
		}
	}
	return count, nil
}

func (r *fakeOrderRepo) BulkCancelPending(_ context.Context, orderIDs []uuid.UUID, reason string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bulkCancels++
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

// fakeCartRepo is an in-memory order.CartRepository
type fakeCartRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*order.CartItem
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{rows: make(map[uuid.UUID]*order.CartItem)}
}

func (r *fakeCartRepo) FindByBuyer(_ context.Context, buyerID uuid.UUID) ([]order.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]order.CartItem, 0)
	for _, row := range r.rows {
		if row.BuyerID == buyerID {
			result = append(result, *row)
		}
	}
	return result, nil
}

func (r *fakeCartRepo) Save(_ context.Context, item *order.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *item
	r.rows[item.ID] = &copied
	return nil
}

func (r *fakeCartRepo) ClearForBuyer(_ context.Context, buyerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.BuyerID == buyerID {
			delete(r.rows, id)
		}
	}
	return nil
}

// fakeReturnRepo is an in-memory order.ReturnRequestRepository
type fakeReturnRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*order.ReturnRequest
}

func newFakeReturnRepo() *fakeReturnRepo {
	return &fakeReturnRepo{requests: make(map[uuid.UUID]*order.ReturnRequest)}
}

func (r *fakeReturnRepo) FindByID(_ context.Context, id uuid.UUID) (*order.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *fakeReturnRepo) FindByOrderItem(_ context.Context, orderItemID uuid.UUID) (*order.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *order.ReturnRequest
	for _, req := range r.requests {
		if req.OrderItemID == orderItemID {
			if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
				latest = req
			}
		}
	}
	if latest == nil {
		return nil, shared.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeReturnRepo) FindByStatus(_ context.Context, status order.ReturnStatus, _ shared.Filter) ([]order.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]order.ReturnRequest, 0)
	for _, req := range r.requests {
		if req.Status == status {
			result = append(result, *req)
		}
	}
	return result, nil
}

func (r *fakeReturnRepo) Save(_ context.Context, req *order.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

// fakeShipmentRepo is an in-memory logistics.ShipmentRepository
type fakeShipmentRepo struct {
	mu        sync.Mutex
	shipments map[uuid.UUID]*logistics.Shipment
}

func newFakeShipmentRepo() *fakeShipmentRepo {
	return &fakeShipmentRepo{shipments: make(map[uuid.UUID]*logistics.Shipment)}
}

func (r *fakeShipmentRepo) FindByID(_ context.Context, id uuid.UUID) (*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shipments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *sh
	return &copied, nil
}

func (r *fakeShipmentRepo) FindByWaybill(_ context.Context, waybill string) (*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sh := range r.shipments {
		if sh.Waybill == waybill {
			copied := *sh
			return &copied, nil
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
			copied := *sh
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeShipmentRepo) FindDeliveredBefore(_ context.Context, cutoff time.Time, limit int) ([]*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*logistics.Shipment, 0)
	for _, sh := range r.shipments {
		if !sh.AutoCompletion && sh.DeliveredAt != nil && !sh.DeliveredAt.After(cutoff) {
			copied := *sh
			result = append(result, &copied)
		}
		if len(result) >= limit {
			break
		}
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
		if !sh.Reminder2hSent || !sh.Reminder24hSent || !sh.Reminder48hSent {
			copied := *sh
			result = append(result, &copied)
		}
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *fakeShipmentRepo) Save(_ context.Context, sh *logistics.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *sh
	r.shipments[sh.ID] = &copied
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

// fakeRecordRepo is an in-memory logistics.LogisticsRecordRepository
type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*logistics.LogisticsRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[uuid.UUID]*logistics.LogisticsRecord)}
}

func (r *fakeRecordRepo) FindByProduct(_ context.Context, product catalog.ProductRef) (*logistics.LogisticsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[product.ID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeRecordRepo) FindByProducts(_ context.Context, products []catalog.ProductRef) (map[uuid.UUID]*logistics.LogisticsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[uuid.UUID]*logistics.LogisticsRecord)
	for _, p := range products {
		if rec, ok := r.records[p.ID]; ok {
			copied := *rec
			result[p.ID] = &copied
		}
	}
	return result, nil
}

func (r *fakeRecordRepo) Save(_ context.Context, rec *logistics.LogisticsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rec
	r.records[rec.Product.ID] = &copied
	return nil
}

// flatRateQuoter prices every parcel at a fixed rate per kg plus a base fee
type flatRateQuoter struct {
	base  decimal.Decimal
	perKg decimal.Decimal
}

func newFlatRateQuoter() *flatRateQuoter {
	return &flatRateQuoter{
		base:  decimal.NewFromFloat(2.50),
		perKg: decimal.NewFromFloat(1.00),
	}
}

func (q *flatRateQuoter) Quote(_ context.Context, _ order.ShippingAddress, weightKg decimal.Decimal) (decimal.Decimal, error) {
	return q.base.Add(weightKg.Mul(q.perKg)), nil
}

// fakeIdempotencyStore is an in-memory shared.IdempotencyStore
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]struct{})}
}

func (s *fakeIdempotencyStore) MarkProcessed(_ context.Context, messageID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[messageID]; ok {
		return false, nil
	}
	s.seen[messageID] = struct{}{}
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[messageID]
	return ok, nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }
