package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	logisticsapp "github.com/marketplace/backend/internal/application/logistics"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

type carrierWebhookTestEnv struct {
	handler      *CarrierWebhookHandler
	orderRepo    *mockOrderRepository
	shipmentRepo *mockShipmentRepository
}

func setupCarrierWebhookTestHandler(decrypter logisticsapp.WebhookDecrypter) *carrierWebhookTestEnv {
	gin.SetMode(gin.TestMode)

	orderRepo := newMockOrderRepository()
	shipmentRepo := newMockShipmentRepository()

	txScope := logisticsapp.NewNoOpTransactionScope(shipmentRepo, orderRepo)
	service := logisticsapp.NewWebhookService(txScope, decrypter, newMockIdempotencyStore(), zap.NewNop())

	return &carrierWebhookTestEnv{
		handler:      NewCarrierWebhookHandler(service),
		orderRepo:    orderRepo,
		shipmentRepo: shipmentRepo,
	}
}

// seedShippedOrder persists a shipped order with one submitted shipment
func (env *carrierWebhookTestEnv) seedShippedOrder(t *testing.T, waybill string) (*order.Order, *logistics.Shipment) {
	t.Helper()

	o := createTestPendingOrder(t, uuid.New())
	require.NoError(t, o.MarkPaid())
	require.NoError(t, o.MarkShipped())

	sh := createTestShipment(t, o.ID)
	require.NoError(t, sh.AttachWaybill(waybill))
	require.NoError(t, env.orderRepo.Save(nil, o))
	require.NoError(t, env.shipmentRepo.Save(nil, sh))
	return o, sh
}

func postCarrierWebhook(handler *CarrierWebhookHandler, envelope []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/webhooks/carrier", bytes.NewBuffer(envelope))
	c.Request.Header.Set("Content-Type", "application/octet-stream")
	handler.HandleCarrierWebhook(c)
	return w
}

func TestCarrierWebhookHandler_DeliveredNotification(t *testing.T) {
	env := setupCarrierWebhookTestHandler(identityDecrypter{})
	o, sh := env.seedShippedOrder(t, "WB-500100")

	envelope, _ := json.Marshal(logisticsapp.CarrierWebhookPayload{
		Waybill:    "WB-500100",
		StatusCode: "500",
		Status:     "delivered",
		OccurredAt: "2026-08-30T10:00:00Z",
	})

	w := postCarrierWebhook(env.handler, envelope)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp CarrierWebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	require.NotNil(t, resp.Shipment)
	assert.Equal(t, logistics.ShipmentStatusDelivered.String(), resp.Shipment.Status)
	require.NotNil(t, resp.Shipment.DeliveredAt)

	// the single-shipment order follows the shipment to DELIVERED
	updated, err := env.orderRepo.FindByID(nil, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderStatusDelivered, updated.Status)

	stored, err := env.shipmentRepo.FindByID(nil, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, logistics.ShipmentStatusDelivered, stored.Status)
}

func TestCarrierWebhookHandler_PickupPointMovesOrder(t *testing.T) {
	env := setupCarrierWebhookTestHandler(identityDecrypter{})
	o, _ := env.seedShippedOrder(t, "WB-500101")

	envelope, _ := json.Marshal(logisticsapp.CarrierWebhookPayload{
		Waybill:    "WB-500101",
		StatusCode: "350",
		Status:     "at pickup point",
	})

	w := postCarrierWebhook(env.handler, envelope)

	assert.Equal(t, http.StatusOK, w.Code)

	updated, err := env.orderRepo.FindByID(nil, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderStatusAtPickup, updated.Status)
}

func TestCarrierWebhookHandler_ReplayAcknowledged(t *testing.T) {
	env := setupCarrierWebhookTestHandler(identityDecrypter{})
	env.seedShippedOrder(t, "WB-500102")

	envelope, _ := json.Marshal(logisticsapp.CarrierWebhookPayload{
		Waybill:    "WB-500102",
		StatusCode: "500",
		Status:     "delivered",
	})

	first := postCarrierWebhook(env.handler, envelope)
	require.Equal(t, http.StatusOK, first.Code)

	second := postCarrierWebhook(env.handler, envelope)
	assert.Equal(t, http.StatusOK, second.Code)

	var resp CarrierWebhookResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.Nil(t, resp.Shipment)
}

func TestCarrierWebhookHandler_RegressionIsANoOp(t *testing.T) {
	env := setupCarrierWebhookTestHandler(identityDecrypter{})
	_, sh := env.seedShippedOrder(t, "WB-500103")

	delivered, _ := json.Marshal(logisticsapp.CarrierWebhookPayload{Waybill: "WB-500103", StatusCode: "500"})
	require.Equal(t, http.StatusOK, postCarrierWebhook(env.handler, delivered).Code)

	// a late in-transit event must not pull the shipment backwards
	inTransit, _ := json.Marshal(logisticsapp.CarrierWebhookPayload{Waybill: "WB-500103", StatusCode: "300"})
	w := postCarrierWebhook(env.handler, inTransit)
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := env.shipmentRepo.FindByID(nil, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, logistics.ShipmentStatusDelivered, stored.Status)
}

func TestCarrierWebhookHandler_UndecryptableEnvelope(t *testing.T) {
	env := setupCarrierWebhookTestHandler(identityDecrypter{err: shared.ErrInvalidPayload})

	w := postCarrierWebhook(env.handler, []byte("garbage"))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp CarrierWebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Received)
}

func TestCarrierWebhookHandler_MalformedPayload(t *testing.T) {
	env := setupCarrierWebhookTestHandler(identityDecrypter{})

	w := postCarrierWebhook(env.handler, []byte("not json"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCarrierWebhookHandler_UnknownWaybill(t *testing.T) {
	env := setupCarrierWebhookTestHandler(identityDecrypter{})

	envelope, _ := json.Marshal(logisticsapp.CarrierWebhookPayload{
		Waybill:    "WB-UNKNOWN",
		StatusCode: "500",
	})

	w := postCarrierWebhook(env.handler, envelope)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCarrierWebhookHandler_OversizedEnvelope(t *testing.T) {
	env := setupCarrierWebhookTestHandler(identityDecrypter{})

	w := postCarrierWebhook(env.handler, bytes.Repeat([]byte("a"), maxCarrierPayloadSize+1))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
