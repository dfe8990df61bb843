// Package ristretto implements the cache tier port using
// dgraph-io/ristretto as the in-process L1 tier.
package ristretto

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache wraps a ristretto cache as the L1 tier. Ristretto handles TTL
// expiry and cost-based eviction; a side index of live keys supports
// prefix deletes, which ristretto itself cannot enumerate.
//
// The index may hold keys ristretto has already expired or evicted.
// That is harmless: deleting a missing key is a no-op, and the entry
// leaves the index on the next Delete or matching DeletePattern.
//
// L1 is advisory by design: ristretto may decline an admission or
// evict under memory pressure, and either just means the next read
// falls through to L2.
type Cache struct {
	c *ristretto.Cache[string, []byte]

	mu   sync.Mutex
	keys map[string]struct{}
}

// New creates a ristretto-backed cache. maxCostBytes is the maximum
// total size of cached values in bytes.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, keys: make(map[string]struct{})}, nil
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, found bool, err error) {
	val, ok := c.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value in the cache with the given TTL.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
	c.c.Del(key)
	return nil
}

// DeletePattern removes every key starting with prefix. Matching keys
// are snapshotted under the lock, then deleted outside it so the scan
// never serializes concurrent Set/Get traffic behind backend deletes.
func (c *Cache) DeletePattern(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	matched := make([]string, 0, 16)
	for k := range c.keys {
		if strings.HasPrefix(k, prefix) {
			matched = append(matched, k)
			delete(c.keys, k)
		}
	}
	c.mu.Unlock()

	for _, k := range matched {
		c.c.Del(k)
	}
	return len(matched), nil
}

// Wait blocks until pending writes are applied. Used by tests;
// production readers tolerate ristretto's asynchronous admission.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
