package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	apporder "github.com/marketplace/backend/internal/application/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// geocodeRequest is the carrier's address normalization payload
type geocodeRequest struct {
	Query string `json:"query"`
}

// geocodeResponse is the carrier's address normalization result
type geocodeResponse struct {
	Formatted string `json:"formatted"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

// ResolveAddress normalizes a free-form address to the carrier's canonical
// single-line form.
func (c *HTTPCarrierClient) ResolveAddress(ctx context.Context, query string) (string, error) {
	respBody, err := c.doRequest(ctx, "/v1/geocode", geocodeRequest{Query: query})
	if err != nil {
		return "", err
	}

	var resp geocodeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("carrier: failed to parse response: %w", err)
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("carrier: %d - %s", resp.Code, resp.Message)
	}
	if resp.Formatted == "" {
		return "", fmt.Errorf("carrier: response carries no formatted address")
	}

	return resp.Formatted, nil
}

// GeocodeSource is the port the cached geocoder composes over. Satisfied by
// HTTPCarrierClient.
type GeocodeSource interface {
	ResolveAddress(ctx context.Context, query string) (string, error)
}

// CachedGeocoder caches address resolutions without expiry. Postal addresses
// do not move; a resolved form is served from cache forever. A cache failure
// falls through to the geocoder.
type CachedGeocoder struct {
	source GeocodeSource
	cache  shared.Cache
	logger *zap.Logger
}

// NewCachedGeocoder creates a geocoder that caches resolutions from the
// wrapped source indefinitely.
func NewCachedGeocoder(source GeocodeSource, cache shared.Cache, logger *zap.Logger) *CachedGeocoder {
	return &CachedGeocoder{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

// Resolve normalizes an address, serving repeated queries from cache
func (g *CachedGeocoder) Resolve(ctx context.Context, query string) (string, error) {
	key := g.cacheKey(query)

	if cached, err := g.cache.Get(ctx, key); err == nil {
		return cached, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		g.logger.Warn("geocode cache read failed", zap.Error(err))
	}

	resolved, err := g.source.ResolveAddress(ctx, query)
	if err != nil {
		return "", err
	}

	// zero TTL: resolutions never expire
	if err := g.cache.Set(ctx, key, resolved, 0); err != nil {
		g.logger.Warn("geocode cache write failed", zap.Error(err))
	}

	return resolved, nil
}

// cacheKey folds case and surrounding whitespace so trivially different
// spellings of the same address share an entry.
func (g *CachedGeocoder) cacheKey(query string) string {
	return "carrier:geocode:" + strings.ToLower(strings.TrimSpace(query))
}

// Ensure the geocoders implement AddressResolver
var _ apporder.AddressResolver = (*CachedGeocoder)(nil)
