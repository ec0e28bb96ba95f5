package order

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/application/stock"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// ShippingQuoter prices the shipping of one parcel to one address. The
// carrier-backed implementation lives in infrastructure; tests supply a
// flat-rate stand-in.
type ShippingQuoter interface {
	Quote(ctx context.Context, address order.ShippingAddress, weightKg decimal.Decimal) (decimal.Decimal, error)
}

// AddressResolver normalizes a free-form address query into the carrier's
// canonical single-line form. The geocoder-backed implementation lives in
// infrastructure and caches resolutions indefinitely.
type AddressResolver interface {
	Resolve(ctx context.Context, query string) (string, error)
}

// CheckoutService turns a cart or an explicit item list into a pending
// order. Stock reservation, shipment grouping and the cart clear commit in
// one transaction, so a failed checkout leaves no partial holds behind.
type CheckoutService struct {
	txScope        TransactionScope
	recordRepo     logistics.LogisticsRecordRepository
	quoter         ShippingQuoter
	resolver       AddressResolver
	provider       string
	senderAddress  string
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(
	txScope TransactionScope,
	recordRepo logistics.LogisticsRecordRepository,
	quoter ShippingQuoter,
	provider string,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		txScope:    txScope,
		recordRepo: recordRepo,
		quoter:     quoter,
		provider:   provider,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *CheckoutService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAddressResolver sets the geocoding resolver used for shipment
// sender/receiver addresses. Without one, raw formatted addresses are used.
func (s *CheckoutService) SetAddressResolver(resolver AddressResolver) {
	s.resolver = resolver
}

// SetSenderAddress sets the parcel origin address stamped on shipments
func (s *CheckoutService) SetSenderAddress(address string) {
	s.senderAddress = address
}

// Checkout reserves stock for every requested line, groups the lines into
// per-seller shipments, prices shipping and persists the pending order.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*OrderResponse, error) {
	address := req.Address.toDomain()
	if err := address.Validate(); err != nil {
		return nil, err
	}

	var o *order.Order
	var shipments []*logistics.Shipment

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		lines, err := s.resolveLines(ctx, repos, req)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return shared.NewDomainError("EMPTY_ORDER", "Checkout requires at least one item")
		}

		o, err = order.NewOrder(newOrderNumber(), req.BuyerID, address)
		if err != nil {
			return err
		}

		touched := make(map[catalog.ProductRef]struct{})
		for _, line := range lines {
			variant, err := repos.VariantRepo().FindByIDForUpdate(ctx, line.VariantID)
			if err != nil {
				return err
			}
			if err := variant.Reserve(line.Quantity); err != nil {
				return err
			}
			if err := repos.VariantRepo().Save(ctx, variant); err != nil {
				return err
			}
			touched[variant.Product] = struct{}{}

			name := variant.ProductName
			if name == "" {
				name = variant.SKU
			}
			if _, err := o.AddItem(variant, name, line.Quantity); err != nil {
				return err
			}
		}

		shipments, err = s.buildShipments(ctx, o, address)
		if err != nil {
			return err
		}
		shippingTotal := decimal.Zero
		for _, sh := range shipments {
			shippingTotal = shippingTotal.Add(sh.ShippingCost)
			if err := repos.ShipmentRepo().Save(ctx, sh); err != nil {
				return err
			}
		}
		if err := o.SetShippingTotal(shippingTotal); err != nil {
			return err
		}

		if err := repos.OrderRepo().Save(ctx, o); err != nil {
			return err
		}
		if req.FromCart {
			if err := repos.CartRepo().ClearForBuyer(ctx, req.BuyerID); err != nil {
				return err
			}
		}
		for ref := range touched {
			if err := stock.RecomputeProductIndex(ctx, repos, ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, o, shipments)
	s.logger.Info("Checkout completed",
		zap.String("order_number", o.OrderNumber),
		zap.String("buyer_id", o.BuyerID.String()),
		zap.Int("items", len(o.Items)),
		zap.Int("shipments", len(shipments)),
	)
	response := ToOrderResponse(o)
	return &response, nil
}

// GetOrder retrieves an order with its items
func (s *CheckoutService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	var o *order.Order
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		o, err = repos.OrderRepo().FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	response := ToOrderResponse(o)
	return &response, nil
}

// ListOrders pages through one buyer's orders, newest first
func (s *CheckoutService) ListOrders(ctx context.Context, buyerID uuid.UUID, filter shared.Filter) ([]OrderResponse, error) {
	var orders []order.Order
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		orders, err = repos.OrderRepo().FindByBuyer(ctx, buyerID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	responses := make([]OrderResponse, 0, len(orders))
	for idx := range orders {
		responses = append(responses, ToOrderResponse(&orders[idx]))
	}
	return responses, nil
}

// resolveLines merges cart rows and request lines into one list
func (s *CheckoutService) resolveLines(ctx context.Context, repos TransactionalRepositories, req CheckoutRequest) ([]CheckoutItemRequest, error) {
	if !req.FromCart {
		return req.Items, nil
	}
	rows, err := repos.CartRepo().FindByBuyer(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	lines := make([]CheckoutItemRequest, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, CheckoutItemRequest{VariantID: row.VariantID, Quantity: row.Quantity})
	}
	return lines, nil
}

// buildShipments carves the order into one shipment per seller and prices
// each parcel from the declared product weights.
func (s *CheckoutService) buildShipments(ctx context.Context, o *order.Order, address order.ShippingAddress) ([]*logistics.Shipment, error) {
	products := make([]catalog.ProductRef, 0, len(o.Items))
	for idx := range o.Items {
		products = append(products, o.Items[idx].Product)
	}
	records, err := s.recordRepo.FindByProducts(ctx, products)
	if err != nil {
		return nil, err
	}

	receiver := s.resolveAddress(ctx, formatAddress(address))
	sender := s.resolveAddress(ctx, s.senderAddress)
	shipments := make([]*logistics.Shipment, 0)
	for sellerID, items := range o.ItemsBySeller() {
		sh, err := logistics.NewShipment(o.ID, sellerID, s.provider)
		if err != nil {
			return nil, err
		}

		weight := decimal.Zero
		price := decimal.Zero
		count := 0
		for _, item := range items {
			unitWeight := logistics.ItemWeightKg(records, item.Product)
			weight = weight.Add(unitWeight.Mul(decimal.NewFromInt(int64(item.Quantity))))
			price = price.Add(item.Amount)
			count += item.Quantity
			item.ShipmentID = &sh.ID
		}

		cost, err := s.quoter.Quote(ctx, address, weight)
		if err != nil {
			return nil, err
		}
		sh.ItemCount = count
		sh.TotalPrice = price
		sh.TotalWeightKg = weight
		sh.ShippingCost = cost
		sh.SenderAddress = sender
		sh.ReceiverAddress = receiver
		shipments = append(shipments, sh)
	}
	return shipments, nil
}

// publish flushes the pending domain events of the order and its shipments
func (s *CheckoutService) publish(ctx context.Context, o *order.Order, shipments []*logistics.Shipment) {
	if s.eventPublisher == nil {
		return
	}
	events := o.GetDomainEvents()
	for _, sh := range shipments {
		events = append(events, sh.GetDomainEvents()...)
	}
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	o.ClearDomainEvents()
	for _, sh := range shipments {
		sh.ClearDomainEvents()
	}
}

// resolveAddress passes the query through the geocoder. A geocoding failure
// degrades to the raw query so checkout proceeds.
func (s *CheckoutService) resolveAddress(ctx context.Context, query string) string {
	if s.resolver == nil || query == "" {
		return query
	}
	resolved, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		s.logger.Warn("address resolution failed, using raw address",
			zap.String("query", query),
			zap.Error(err),
		)
		return query
	}
	return resolved
}

func formatAddress(a order.ShippingAddress) string {
	parts := []string{a.RecipientName, a.Line1, a.City}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	parts = append(parts, a.Country)
	if a.PostalCode != "" {
		parts = append(parts, a.PostalCode)
	}
	return strings.Join(parts, ", ")
}

// newOrderNumber builds a human-readable unique order number
func newOrderNumber() string {
	return fmt.Sprintf("MKT-%s-%06d", time.Now().UTC().Format("20060102"), rand.Intn(1000000))
}
