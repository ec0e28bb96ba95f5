package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	applogistics "github.com/marketplace/backend/internal/application/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/infrastructure/config"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 1 * 1024 * 1024 // 1MB max response

// ErrCarrierUnavailable indicates the carrier API could not be reached
var ErrCarrierUnavailable = errors.New("carrier: service unavailable")

// HTTPCarrierClient talks to the logistics provider's REST API. It
// implements both waybill creation for shipment submission and rate
// quoting for checkout.
type HTTPCarrierClient struct {
	cfg        config.CarrierConfig
	httpClient *http.Client
}

// NewHTTPCarrierClient creates a carrier client from configuration
func NewHTTPCarrierClient(cfg config.CarrierConfig) *HTTPCarrierClient {
	return &HTTPCarrierClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// waybillRequest is the carrier's parcel registration payload
type waybillRequest struct {
	Reference       string          `json:"reference"`
	Provider        string          `json:"provider"`
	ReceiverAddress string          `json:"receiver_address"`
	WeightKg        decimal.Decimal `json:"weight_kg"`
	ItemCount       int             `json:"item_count"`
}

// waybillResponse is the carrier's parcel registration result
type waybillResponse struct {
	Waybill string `json:"waybill"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CreateWaybill registers the parcel with the carrier and returns the
// issued tracking identifier.
func (c *HTTPCarrierClient) CreateWaybill(ctx context.Context, submission applogistics.ShipmentSubmission) (string, error) {
	reqBody := waybillRequest{
		Reference:       submission.Reference,
		Provider:        submission.Provider,
		ReceiverAddress: submission.ReceiverAddress,
		WeightKg:        submission.WeightKg,
		ItemCount:       submission.ItemCount,
	}

	respBody, err := c.doRequest(ctx, "/v1/waybills", reqBody)
	if err != nil {
		return "", err
	}

	var resp waybillResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("carrier: failed to parse response: %w", err)
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("carrier: %d - %s", resp.Code, resp.Message)
	}
	if resp.Waybill == "" {
		return "", fmt.Errorf("carrier: response carries no waybill")
	}

	return resp.Waybill, nil
}

// rateRequest is the carrier's rate quote payload
type rateRequest struct {
	Provider   string          `json:"provider"`
	Country    string          `json:"country"`
	City       string          `json:"city"`
	PostalCode string          `json:"postal_code"`
	WeightKg   decimal.Decimal `json:"weight_kg"`
}

// rateResponse is the carrier's rate quote result
type rateResponse struct {
	Cost    decimal.Decimal `json:"cost"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
}

// Quote prices the shipping of one parcel to one address
func (c *HTTPCarrierClient) Quote(ctx context.Context, address order.ShippingAddress, weightKg decimal.Decimal) (decimal.Decimal, error) {
	reqBody := rateRequest{
		Provider:   c.cfg.Provider,
		Country:    address.Country,
		City:       address.City,
		PostalCode: address.PostalCode,
		WeightKg:   weightKg,
	}

	respBody, err := c.doRequest(ctx, "/v1/rates", reqBody)
	if err != nil {
		return decimal.Zero, err
	}

	var resp rateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("carrier: failed to parse response: %w", err)
	}
	if resp.Code != 0 {
		return decimal.Zero, fmt.Errorf("carrier: %d - %s", resp.Code, resp.Message)
	}
	if resp.Cost.IsNegative() {
		return decimal.Zero, fmt.Errorf("carrier: negative rate quoted")
	}

	return resp.Cost, nil
}

// doRequest posts a JSON body to the carrier API and returns the response body
func (c *HTTPCarrierClient) doRequest(ctx context.Context, path string, body any) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("carrier: failed to marshal request: %w", err)
	}

	url := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("carrier: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCarrierUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("carrier: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("carrier: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Ensure HTTPCarrierClient implements the carrier-facing ports
var _ applogistics.CarrierClient = (*HTTPCarrierClient)(nil)
