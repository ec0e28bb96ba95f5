package carrier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apporder "github.com/marketplace/backend/internal/application/order"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// quoteCacheTTL bounds how long a cached rate is served. Carrier rates
// change rarely; an hour keeps checkout off the rate endpoint.
const quoteCacheTTL = 1 * time.Hour

// RateQuoter is the port the cached quoter composes over. Satisfied by
// HTTPCarrierClient.
type RateQuoter interface {
	Quote(ctx context.Context, address order.ShippingAddress, weightKg decimal.Decimal) (decimal.Decimal, error)
}

// CachedQuoter caches carrier rate quotes keyed by destination and weight.
// A cache failure falls through to the carrier; quoting never breaks on a
// cold or unreachable cache.
type CachedQuoter struct {
	quoter RateQuoter
	cache  shared.Cache
	logger *zap.Logger
}

// NewCachedQuoter creates a quoter that caches rates from the wrapped quoter
func NewCachedQuoter(quoter RateQuoter, cache shared.Cache, logger *zap.Logger) *CachedQuoter {
	return &CachedQuoter{
		quoter: quoter,
		cache:  cache,
		logger: logger,
	}
}

// Quote prices shipping, serving repeated destination/weight pairs from cache
func (q *CachedQuoter) Quote(ctx context.Context, address order.ShippingAddress, weightKg decimal.Decimal) (decimal.Decimal, error) {
	key := q.cacheKey(address, weightKg)

	if cached, err := q.cache.Get(ctx, key); err == nil {
		if cost, parseErr := decimal.NewFromString(cached); parseErr == nil {
			return cost, nil
		}
	} else if !errors.Is(err, shared.ErrNotFound) {
		q.logger.Warn("rate cache read failed", zap.Error(err))
	}

	cost, err := q.quoter.Quote(ctx, address, weightKg)
	if err != nil {
		return decimal.Zero, err
	}

	if err := q.cache.Set(ctx, key, cost.String(), quoteCacheTTL); err != nil {
		q.logger.Warn("rate cache write failed", zap.Error(err))
	}

	return cost, nil
}

// cacheKey buckets by country, city, postal code and rounded-up weight so
// near-identical parcels share an entry.
func (q *CachedQuoter) cacheKey(address order.ShippingAddress, weightKg decimal.Decimal) string {
	weight := weightKg.Ceil().String()
	return fmt.Sprintf("carrier:rate:%s:%s:%s:%s",
		strings.ToLower(address.Country),
		strings.ToLower(address.City),
		strings.ToLower(address.PostalCode),
		weight,
	)
}

// Ensure CachedQuoter implements ShippingQuoter
var _ apporder.ShippingQuoter = (*CachedQuoter)(nil)
