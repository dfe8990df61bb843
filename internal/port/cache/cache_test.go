package cache_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tutorium/analytics-cache/internal/port/cache"
)

// RunComplianceTests runs the standard compliance suite against any
// Tier implementation. Adapter tests call this with their backend.
func RunComplianceTests(t *testing.T, c cache.Tier) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "compliance-key", []byte("compliance-val"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "compliance-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "compliance-val" {
			t.Fatalf("expected compliance-val, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "nonexistent-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "del-key", []byte("del-val"), time.Minute)
		if err := c.Delete(ctx, "del-key"); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, "del-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "never-existed"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "ow-key", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "ow-key", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "ow-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})

	runDeletePattern(t, c)
}

func runDeletePattern(t *testing.T, c cache.Tier) {
	t.Helper()
	ctx := context.Background()

	t.Run("DeletePattern", func(t *testing.T) {
		_ = c.Set(ctx, "pat:a:1", []byte("x"), time.Minute)
		_ = c.Set(ctx, "pat:a:2", []byte("y"), time.Minute)
		_ = c.Set(ctx, "pat:b:1", []byte("z"), time.Minute)

		n, err := c.DeletePattern(ctx, "pat:a:")
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Fatalf("expected 2 removals, got %d", n)
		}
		if _, found, _ := c.Get(ctx, "pat:a:1"); found {
			t.Fatal("expected pat:a:1 gone")
		}
		if _, found, _ := c.Get(ctx, "pat:b:1"); !found {
			t.Fatal("expected pat:b:1 untouched")
		}
	})
}

// memTier is a minimal in-memory Tier used to validate the suite itself.
type memTier struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemTier() *memTier {
	return &memTier{data: make(map[string][]byte)}
}

func (m *memTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memTier) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memTier) DeletePattern(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestMemTierCompliance(t *testing.T) {
	RunComplianceTests(t, newMemTier())
}
