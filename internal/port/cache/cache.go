// Package cache defines the port interface for a single cache tier.
package cache

import (
	"context"
	"time"
)

// Tier is the port interface one cache level implements. Values are
// opaque byte slices (the service stores msgpack entry envelopes).
type Tier interface {
	// Get returns the stored bytes for key, with found=false on a miss.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// Set stores value under key. A zero ttl means the backend's
	// default retention applies.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key starting with prefix and returns
	// how many were removed. Implementations must use an indexed or
	// filtered scan, not a full key-space walk.
	DeletePattern(ctx context.Context, prefix string) (int, error)
}
