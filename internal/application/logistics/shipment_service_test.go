package logistics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

type testEnv struct {
	shipments *fakeShipmentRepo
	orders    *fakeOrderRepo
	carrier   *fakeCarrierClient
	scope     *NoOpTransactionScope
	publisher *MockEventPublisher
}

func newTestEnv() *testEnv {
	env := &testEnv{
		shipments: newFakeShipmentRepo(),
		orders:    newFakeOrderRepo(),
		carrier:   newFakeCarrierClient(),
		publisher: NewMockEventPublisher(),
	}
	env.scope = NewNoOpTransactionScope(env.shipments, env.orders)
	return env
}

func (e *testEnv) shipmentService() *ShipmentService {
	s := NewShipmentService(e.scope, e.carrier, zap.NewNop())
	s.SetEventPublisher(e.publisher)
	return s
}

var orderSeq int

// paidOrder builds a paid order with one item and one pending shipment per
// seller, mirroring what checkout produces
func (e *testEnv) paidOrder(t *testing.T, sellerIDs ...uuid.UUID) *order.Order {
	t.Helper()
	ctx := context.Background()

	orderSeq++
	o, err := order.NewOrder(fmt.Sprintf("MKT-20260830-%06d", orderSeq), uuid.New(), order.ShippingAddress{
		RecipientName: "Jamie Doe",
		Phone:         "+31612345678",
		Line1:         "Keizersgracht 1",
		City:          "Amsterdam",
		Country:       "NL",
	})
	require.NoError(t, err)

	for _, sellerID := range sellerIDs {
		ref, err := catalog.NewProductRef(catalog.ProductKindFashion, uuid.New())
		require.NoError(t, err)
		v, err := catalog.NewVariant(ref, uuid.New(), sellerID, "SKU-"+uuid.NewString()[:8], decimal.NewFromInt(15))
		require.NoError(t, err)
		_, err = o.AddItem(v, "Test item", 1)
		require.NoError(t, err)
	}
	require.NoError(t, o.MarkPaid())

	for sellerID, items := range o.ItemsBySeller() {
		sh, err := logistics.NewShipment(o.ID, sellerID, "postnl")
		require.NoError(t, err)
		sh.ItemCount = len(items)
		sh.TotalWeightKg = decimal.NewFromFloat(0.5)
		sh.ReceiverAddress = "Jamie Doe, Keizersgracht 1, Amsterdam, NL"
		for _, item := range items {
			id := sh.ID
			item.ShipmentID = &id
		}
		sh.ClearDomainEvents()
		require.NoError(t, e.shipments.Save(ctx, sh))
	}

	o.ClearDomainEvents()
	require.NoError(t, e.orders.Save(ctx, o))
	return o
}

func TestSubmitShipmentsForOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("submits every shipment and marks the order shipped", func(t *testing.T) {
		env := newTestEnv()
		o := env.paidOrder(t, uuid.New(), uuid.New())

		result, err := env.shipmentService().SubmitShipmentsForOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, result.AllSucceeded)
		require.Len(t, result.Results, 2)
		for _, r := range result.Results {
			assert.NotEmpty(t, r.Waybill)
			assert.Empty(t, r.Error)
		}

		stored, err := env.orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.OrderStatusShipped, stored.Status)

		shipments, err := env.shipments.FindByOrder(ctx, o.ID)
		require.NoError(t, err)
		for _, sh := range shipments {
			assert.Equal(t, logistics.ShipmentStatusInitiated, sh.Status)
			assert.NotEmpty(t, sh.Waybill)
		}
	})

	t.Run("partial carrier failure keeps the order paid", func(t *testing.T) {
		env := newTestEnv()
		sellerA, sellerB := uuid.New(), uuid.New()
		o := env.paidOrder(t, sellerA, sellerB)

		shipments, err := env.shipments.FindByOrder(ctx, o.ID)
		require.NoError(t, err)
		env.carrier.failFor[shipments[0].ID] = errors.New("label service unavailable")

		result, err := env.shipmentService().SubmitShipmentsForOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.False(t, result.AllSucceeded)

		stored, err := env.orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.OrderStatusPaid, stored.Status)

		// Retry after the carrier recovers: only the failed shipment is
		// resubmitted, and the order ships.
		delete(env.carrier.failFor, shipments[0].ID)
		requestsBefore := len(env.carrier.requests)

		result, err = env.shipmentService().SubmitShipmentsForOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, result.AllSucceeded)
		assert.Equal(t, requestsBefore+1, len(env.carrier.requests))

		stored, err = env.orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.OrderStatusShipped, stored.Status)
	})

	t.Run("pending order is rejected", func(t *testing.T) {
		env := newTestEnv()
		o := env.paidOrder(t, uuid.New())
		stored, err := env.orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		stored.Status = order.OrderStatusPending
		require.NoError(t, env.orders.Save(ctx, stored))

		_, err = env.shipmentService().SubmitShipmentsForOrder(ctx, o.ID)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ORDER_NOT_PAID", domainErr.Code)
		assert.Empty(t, env.carrier.requests)
	})

	t.Run("replayed submission leaves the shipped order alone", func(t *testing.T) {
		env := newTestEnv()
		o := env.paidOrder(t, uuid.New())
		service := env.shipmentService()

		first, err := service.SubmitShipmentsForOrder(ctx, o.ID)
		require.NoError(t, err)
		require.True(t, first.AllSucceeded)

		second, err := service.SubmitShipmentsForOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, second.AllSucceeded)
		assert.Equal(t, first.Results[0].Waybill, second.Results[0].Waybill)
		// No new carrier call for the already-waybilled shipment.
		assert.Len(t, env.carrier.requests, 1)
	})

	t.Run("submission carries the parcel details", func(t *testing.T) {
		env := newTestEnv()
		o := env.paidOrder(t, uuid.New())

		_, err := env.shipmentService().SubmitShipmentsForOrder(ctx, o.ID)
		require.NoError(t, err)

		require.Len(t, env.carrier.requests, 1)
		sub := env.carrier.requests[0]
		assert.Equal(t, o.OrderNumber, sub.Reference)
		assert.Equal(t, "postnl", sub.Provider)
		assert.Equal(t, 1, sub.ItemCount)
		assert.True(t, sub.WeightKg.IsPositive())
	})
}
