package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	logisticsapp "github.com/marketplace/backend/internal/application/logistics"
	orderapp "github.com/marketplace/backend/internal/application/order"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// In-memory repositories backing the application services under test.

type mockVariantRepository struct {
	mu       sync.Mutex
	variants map[uuid.UUID]*catalog.Variant
	saveErr  error
}

func newMockVariantRepository() *mockVariantRepository {
	return &mockVariantRepository{variants: make(map[uuid.UUID]*catalog.Variant)}
}

func (r *mockVariantRepository) FindByID(_ context.Context, id uuid.UUID) (*catalog.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *mockVariantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Variant, error) {
	return r.FindByID(ctx, id)
}

func (r *mockVariantRepository) FindBySKU(_ context.Context, sku string) (*catalog.Variant, error) {
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

func (r *mockVariantRepository) FindByProduct(_ context.Context, product catalog.ProductRef) ([]catalog.Variant, error) {
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

func (r *mockVariantRepository) Save(_ context.Context, v *catalog.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	copied := *v
	r.variants[v.ID] = &copied
	return nil
}

func (r *mockVariantRepository) SumQuantityByProduct(_ context.Context, product catalog.ProductRef) (int, error) {
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

type mockIndexRepository struct {
	mu      sync.Mutex
	indexes map[string]*catalog.ProductIndex
}

func newMockIndexRepository() *mockIndexRepository {
	return &mockIndexRepository{indexes: make(map[string]*catalog.ProductIndex)}
}

func (r *mockIndexRepository) Upsert(_ context.Context, index *catalog.ProductIndex) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *index
	r.indexes[index.Product.String()] = &copied
	return nil
}

func (r *mockIndexRepository) Find(_ context.Context, product catalog.ProductRef) (*catalog.ProductIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	index, ok := r.indexes[product.String()]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *index
	return &copied, nil
}

type mockOrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*order.Order)}
}

func copyTestOrder(o *order.Order) *order.Order {
	copied := *o
	copied.Items = make([]order.OrderItem, len(o.Items))
	copy(copied.Items, o.Items)
	return &copied
}

func (r *mockOrderRepository) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyTestOrder(o), nil
}

func (r *mockOrderRepository) FindByOrderNumber(_ context.Context, orderNumber string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			return copyTestOrder(o), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *mockOrderRepository) FindByBuyer(_ context.Context, buyerID uuid.UUID, _ shared.Filter) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]order.Order, 0)
	for _, o := range r.orders {
		if o.BuyerID == buyerID {
			result = append(result, *copyTestOrder(o))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *mockOrderRepository) FindPendingOlderThan(_ context.Context, cutoff time.Time, limit int) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]order.Order, 0)
	for _, o := range r.orders {
		if o.Status == order.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			result = append(result, *copyTestOrder(o))
		}
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *mockOrderRepository) FindItemByID(_ context.Context, itemID uuid.UUID) (*order.OrderItem, error) {
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

func (r *mockOrderRepository) Save(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = copyTestOrder(o)
	return nil
}

func (r *mockOrderRepository) SaveItem(_ context.Context, item *order.OrderItem) error {
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

func (r *mockOrderRepository) BulkCompleteItems(_ context.Context, itemIDs []uuid.UUID, _ time.Time) (int, error) {
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

func (r *mockOrderRepository) BulkCancelPending(_ context.Context, orderIDs []uuid.UUID, reason string, at time.Time) (int, error) {
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

type mockCartRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*order.CartItem
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{rows: make(map[uuid.UUID]*order.CartItem)}
}

func (r *mockCartRepository) FindByBuyer(_ context.Context, buyerID uuid.UUID) ([]order.CartItem, error) {
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

func (r *mockCartRepository) Save(_ context.Context, item *order.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *item
	r.rows[item.ID] = &copied
	return nil
}

func (r *mockCartRepository) ClearForBuyer(_ context.Context, buyerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.BuyerID == buyerID {
			delete(r.rows, id)
		}
	}
	return nil
}

type mockReturnRepository struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*order.ReturnRequest
}

func newMockReturnRepository() *mockReturnRepository {
	return &mockReturnRepository{requests: make(map[uuid.UUID]*order.ReturnRequest)}
}

func (r *mockReturnRepository) FindByID(_ context.Context, id uuid.UUID) (*order.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *mockReturnRepository) FindByOrderItem(_ context.Context, orderItemID uuid.UUID) (*order.ReturnRequest, error) {
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

func (r *mockReturnRepository) FindByStatus(_ context.Context, status order.ReturnStatus, _ shared.Filter) ([]order.ReturnRequest, error) {
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

func (r *mockReturnRepository) Save(_ context.Context, req *order.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

type mockShipmentRepository struct {
	mu        sync.Mutex
	shipments map[uuid.UUID]*logistics.Shipment
}

func newMockShipmentRepository() *mockShipmentRepository {
	return &mockShipmentRepository{shipments: make(map[uuid.UUID]*logistics.Shipment)}
}

func (r *mockShipmentRepository) FindByID(_ context.Context, id uuid.UUID) (*logistics.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shipments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *sh
	return &copied, nil
}

func (r *mockShipmentRepository) FindByWaybill(_ context.Context, waybill string) (*logistics.Shipment, error) {
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

func (r *mockShipmentRepository) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*logistics.Shipment, error) {
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

func (r *mockShipmentRepository) FindDeliveredBefore(_ context.Context, cutoff time.Time, limit int) ([]*logistics.Shipment, error) {
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

func (r *mockShipmentRepository) FindDeliveredPendingReminders(_ context.Context, limit int) ([]*logistics.Shipment, error) {
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

func (r *mockShipmentRepository) Save(_ context.Context, sh *logistics.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *sh
	r.shipments[sh.ID] = &copied
	return nil
}

func (r *mockShipmentRepository) DeleteByOrder(_ context.Context, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sh := range r.shipments {
		if sh.OrderID == orderID {
			delete(r.shipments, id)
		}
	}
	return nil
}

func (r *mockShipmentRepository) DeleteByOrders(_ context.Context, orderIDs []uuid.UUID) error {
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

type mockRecordRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*logistics.LogisticsRecord
}

func newMockRecordRepository() *mockRecordRepository {
	return &mockRecordRepository{records: make(map[uuid.UUID]*logistics.LogisticsRecord)}
}

func (r *mockRecordRepository) FindByProduct(_ context.Context, product catalog.ProductRef) (*logistics.LogisticsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[product.ID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *mockRecordRepository) FindByProducts(_ context.Context, products []catalog.ProductRef) (map[uuid.UUID]*logistics.LogisticsRecord, error) {
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

func (r *mockRecordRepository) Save(_ context.Context, rec *logistics.LogisticsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rec
	r.records[rec.Product.ID] = &copied
	return nil
}

type mockIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newMockIdempotencyStore() *mockIdempotencyStore {
	return &mockIdempotencyStore{seen: make(map[string]struct{})}
}

func (s *mockIdempotencyStore) MarkProcessed(_ context.Context, messageID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[messageID]; ok {
		return false, nil
	}
	s.seen[messageID] = struct{}{}
	return true, nil
}

func (s *mockIdempotencyStore) IsProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[messageID]
	return ok, nil
}

func (s *mockIdempotencyStore) Close() error { return nil }

// fixedQuoter prices every parcel at a flat rate
type fixedQuoter struct {
	cost decimal.Decimal
}

func (q fixedQuoter) Quote(_ context.Context, _ order.ShippingAddress, _ decimal.Decimal) (decimal.Decimal, error) {
	return q.cost, nil
}

// identityDecrypter passes envelopes through unchanged, so tests can post
// plaintext JSON payloads
type identityDecrypter struct {
	err error
}

func (d identityDecrypter) Decrypt(envelope []byte) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return envelope, nil
}

// stubVerifier returns a canned notification regardless of the payload
type stubVerifier struct {
	notification *orderapp.PaymentNotification
	err          error
}

func (v stubVerifier) Verify(_ []byte, _ string) (*orderapp.PaymentNotification, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.notification, nil
}

// stubCarrier issues sequential waybills and can be told to fail
type stubCarrier struct {
	mu      sync.Mutex
	waybill string
	err     error
	calls   int
}

func (c *stubCarrier) CreateWaybill(_ context.Context, _ logisticsapp.ShipmentSubmission) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.waybill, nil
}
