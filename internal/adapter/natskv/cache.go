// Package natskv implements the cache tier port using NATS JetStream
// KV as the shared L2 tier.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache wraps a NATS JetStream KeyValue bucket as the L2 tier.
//
// Cache keys use ':' as their separator, which is not a legal KV key
// character, so keys are stored in NATS subject form with '.'
// separators (analytics:student:42 -> analytics.student.42). The key
// grammar forbids '.' inside segments, so the mapping is injective,
// and prefix deletes become KV subject filters instead of full scans.
type Cache struct {
	kv jetstream.KeyValue
}

// New creates a NATS KV-backed cache.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// EnsureBucket creates or updates the KV bucket for the L2 tier.
// maxAge is a backstop only; authoritative expiry travels inside the
// stored entry envelope.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, bucket string, maxAge time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    maxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Get retrieves a value from the NATS KV store.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, found bool, err error) {
	entry, err := c.kv.Get(ctx, EncodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), true, nil
}

// Set stores a value in the NATS KV store. Per-key TTL is carried in
// the entry envelope; the bucket's MaxAge bounds overall retention.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := c.kv.Put(ctx, EncodeKey(key), value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Delete removes a value from the NATS KV store.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Purge(ctx, EncodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("kv purge %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes every key under prefix using a KV subject
// filter, so only matching keys are streamed back from the server.
func (c *Cache) DeletePattern(ctx context.Context, prefix string) (int, error) {
	filter := EncodeKey(strings.TrimSuffix(prefix, ":")) + ".>"

	lister, err := c.kv.ListKeysFiltered(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("kv list %s: %w", prefix, err)
	}
	defer func() { _ = lister.Stop() }()

	count := 0
	for key := range lister.Keys() {
		if err := c.kv.Purge(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return count, fmt.Errorf("kv purge %s: %w", key, err)
		}
		count++
	}
	return count, nil
}

// EncodeKey maps a cache key to its NATS KV form.
func EncodeKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}

// DecodeKey maps a NATS KV key back to cache-key form.
func DecodeKey(kvKey string) string {
	return strings.ReplaceAll(kvKey, ".", ":")
}
