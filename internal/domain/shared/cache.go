package shared

import (
	"context"
	"time"
)

// Cache is an explicit key-value cache port. Components that need cached
// state (geocoding lookups, reminder debouncing) receive an implementation
// rather than reaching for a global client.
type Cache interface {
	// Get returns the value for key, or ErrNotFound if the key is absent
	Get(ctx context.Context, key string) (string, error)
	// Set stores the value with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Incr atomically increments the integer value at key and returns it
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the TTL of an existing key
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
