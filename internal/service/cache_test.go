package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tutorium/analytics-cache/internal/domain"
	"github.com/tutorium/analytics-cache/internal/domain/cachekey"
	"github.com/tutorium/analytics-cache/internal/resilience"
)

// fakeTier is an in-memory tier with fault injection.
type fakeTier struct {
	mu       sync.Mutex
	data     map[string][]byte
	failGet  error
	getCalls int
}

func newFakeTier() *fakeTier {
	return &fakeTier{data: make(map[string][]byte)}
}

func (f *fakeTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGet != nil {
		return nil, false, f.failGet
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeTier) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeTier) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeTier) DeletePattern(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeTier) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

type harness struct {
	svc        *CacheService
	l1, l2, l3 *fakeTier
	clock      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		l1:    newFakeTier(),
		l2:    newFakeTier(),
		l3:    newFakeTier(),
		clock: time.Now(),
	}
	h.svc = NewCacheService(h.l1, h.l2, h.l3,
		resilience.NewBreaker(3, time.Minute),
		NewMonitor(), nil, slog.New(slog.DiscardHandler))
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func noCompute(t *testing.T) ComputeFunc {
	return func(context.Context) ([]byte, error) {
		t.Fatal("compute must not run")
		return nil, nil
	}
}

var fullTTL = cachekey.TTLConfig{L1: time.Minute, L2: time.Hour, L3: 24 * time.Hour}

func TestSetThenGetHitsL1WithoutCompute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.svc.Set(ctx, "analytics:student:42", []byte(`{"avg":80}`), fullTTL); err != nil {
		t.Fatal(err)
	}

	val, tier, err := h.svc.Get(ctx, "analytics:student:42", noCompute(t), fullTTL)
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierL1 {
		t.Fatalf("expected L1 hit, got %s", tier)
	}
	if string(val) != `{"avg":80}` {
		t.Fatalf("unexpected value %s", val)
	}
}

func TestL2HitBackfillsL1(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Present only in L2.
	_ = h.svc.Set(ctx, "analytics:student:42", []byte("v"), cachekey.TTLConfig{L2: time.Hour})

	val, tier, err := h.svc.Get(ctx, "analytics:student:42", noCompute(t), fullTTL)
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierL2 {
		t.Fatalf("expected L2 hit, got %s", tier)
	}
	if string(val) != "v" {
		t.Fatalf("unexpected value %s", val)
	}
	if !h.l1.has("analytics:student:42") {
		t.Fatal("expected L1 backfill after L2 hit")
	}
}

func TestL3HitBackfillsL1AndL2(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_ = h.svc.Set(ctx, "analytics:class:9", []byte("agg"), cachekey.TTLConfig{L3: 24 * time.Hour})

	_, tier, err := h.svc.Get(ctx, "analytics:class:9", noCompute(t), fullTTL)
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierL3 {
		t.Fatalf("expected L3 hit, got %s", tier)
	}
	if !h.l1.has("analytics:class:9") || !h.l2.has("analytics:class:9") {
		t.Fatal("expected L1 and L2 backfill after L3 hit")
	}
}

func TestFullMissComputesAndPopulatesAllTiers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	val, tier, err := h.svc.Get(ctx, "analytics:student:7",
		func(context.Context) ([]byte, error) { return []byte("fresh"), nil }, fullTTL)
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierCompute {
		t.Fatalf("expected compute, got %s", tier)
	}
	if string(val) != "fresh" {
		t.Fatalf("unexpected value %s", val)
	}
	for name, tierStore := range map[string]*fakeTier{"l1": h.l1, "l2": h.l2, "l3": h.l3} {
		if !tierStore.has("analytics:student:7") {
			t.Fatalf("expected %s populated after compute", name)
		}
	}

	stats := h.svc.Stats()
	if stats.Misses != 1 || stats.Computed != 1 {
		t.Fatalf("expected 1 miss / 1 computed, got %+v", stats)
	}
}

func TestComputeErrorPropagatesUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	errAgg := errors.New("aggregation query timed out")

	_, _, err := h.svc.Get(ctx, "analytics:student:7",
		func(context.Context) ([]byte, error) { return nil, errAgg }, fullTTL)
	if !errors.Is(err, errAgg) {
		t.Fatalf("expected the compute error unchanged, got %v", err)
	}
	if h.l1.has("analytics:student:7") || h.l2.has("analytics:student:7") {
		t.Fatal("failed compute must not populate tiers")
	}
}

func TestMalformedKeyRejectedBeforeTierIO(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.svc.Get(ctx, "not a key", noCompute(t), fullTTL)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.l1.getCalls != 0 || h.l2.getCalls != 0 {
		t.Fatal("malformed key must not reach any tier")
	}

	if err := h.svc.Set(ctx, "", []byte("x"), fullTTL); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error from Set, got %v", err)
	}
	if _, err := h.svc.InvalidatePattern(ctx, "analytics:*:42"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error from InvalidatePattern, got %v", err)
	}
}

func TestExpiredL1EntryFallsThrough(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_ = h.svc.Set(ctx, "analytics:student:42", []byte("v"), cachekey.TTLConfig{L1: time.Second})
	h.advance(2 * time.Second)

	_, tier, err := h.svc.Get(ctx, "analytics:student:42",
		func(context.Context) ([]byte, error) { return []byte("recomputed"), nil },
		cachekey.TTLConfig{L1: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if tier == TierL1 {
		t.Fatal("expired entry must not be served from L1")
	}
	if tier != TierCompute {
		t.Fatalf("expected compute after expiry, got %s", tier)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_ = h.svc.Set(ctx, "analytics:student:42", []byte("stale"), fullTTL)
	if err := h.svc.Invalidate(ctx, "analytics:student:42"); err != nil {
		t.Fatal(err)
	}
	if h.l1.has("analytics:student:42") || h.l2.has("analytics:student:42") {
		t.Fatal("expected key gone from L1 and L2")
	}
	// L3 keeps its value until the rollup schedule refreshes it.
	if !h.l3.has("analytics:student:42") {
		t.Fatal("invalidate must not touch L3")
	}
}

func TestInvalidatePatternScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	twoTier := cachekey.TTLConfig{L1: time.Minute, L2: time.Hour}
	_ = h.svc.Set(ctx, "analytics:student:42:progress", []byte("a"), twoTier)
	_ = h.svc.Set(ctx, "analytics:student:42:engagement", []byte("b"), twoTier)
	_ = h.svc.Set(ctx, "analytics:student:7:progress", []byte("c"), twoTier)

	n, err := h.svc.InvalidatePattern(ctx, "analytics:student:42:*")
	if err != nil {
		t.Fatal(err)
	}
	// Two keys removed from each of L1 and L2.
	if n != 4 {
		t.Fatalf("expected 4 removed entries, got %d", n)
	}
	if h.l1.has("analytics:student:42:progress") || h.l2.has("analytics:student:42:engagement") {
		t.Fatal("expected scoped keys gone")
	}
	if !h.l1.has("analytics:student:7:progress") {
		t.Fatal("expected other student's key untouched")
	}
}

func TestL2OutageDegradesWithoutError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.l2.failGet = errors.New("connection refused")

	val, tier, err := h.svc.Get(ctx, "analytics:student:42",
		func(context.Context) ([]byte, error) { return []byte("computed"), nil }, fullTTL)
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierCompute {
		t.Fatalf("expected compute fallback, got %s", tier)
	}
	if string(val) != "computed" {
		t.Fatalf("unexpected value %s", val)
	}
}

func TestBreakerStopsHammeringDeadL2(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.l2.failGet = errors.New("connection refused")
	compute := func(context.Context) ([]byte, error) { return []byte("v"), nil }

	// Breaker allows 3 failures, then opens.
	for range 5 {
		if _, _, err := h.svc.Get(ctx, "analytics:student:42", compute, cachekey.TTLConfig{}); err != nil {
			t.Fatal(err)
		}
	}

	h.l2.mu.Lock()
	calls := h.l2.getCalls
	h.l2.mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 L2 calls before circuit opened, got %d", calls)
	}
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var invocations atomic.Int64
	compute := func(context.Context) ([]byte, error) {
		invocations.Add(1)
		time.Sleep(100 * time.Millisecond)
		return []byte("shared"), nil
	}

	const callers = 10
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for range callers {
		go func() {
			defer done.Done()
			start.Wait()
			val, _, err := h.svc.Get(ctx, "analytics:student:42", compute, fullTTL)
			if err != nil {
				t.Error(err)
				return
			}
			if string(val) != "shared" {
				t.Errorf("unexpected value %s", val)
			}
		}()
	}
	start.Done()
	done.Wait()

	if got := invocations.Load(); got != 1 {
		t.Fatalf("expected a single compute invocation, got %d", got)
	}
	stats := h.svc.Stats()
	if stats.Computed != 1 {
		t.Fatalf("expected computed=1, got %d", stats.Computed)
	}
	if stats.Misses != callers {
		t.Fatalf("expected %d misses, got %d", callers, stats.Misses)
	}
}

func TestTieredScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cfg := cachekey.TTLConfig{L1: 60 * time.Second, L2: 3600 * time.Second}

	_ = h.svc.Set(ctx, "analytics:student:42", []byte(`{"avg":80}`), cfg)

	val, tier, err := h.svc.Get(ctx, "analytics:student:42", noCompute(t), cfg)
	if err != nil || tier != TierL1 || string(val) != `{"avg":80}` {
		t.Fatalf("expected L1 hit with original value, got %s %s %v", tier, val, err)
	}

	h.advance(61 * time.Second)
	val, tier, err = h.svc.Get(ctx, "analytics:student:42", noCompute(t), cfg)
	if err != nil || tier != TierL2 || string(val) != `{"avg":80}` {
		t.Fatalf("expected L2 hit with unchanged value, got %s %s %v", tier, val, err)
	}

	if err := h.svc.Invalidate(ctx, "analytics:student:42"); err != nil {
		t.Fatal(err)
	}
	val, tier, err = h.svc.Get(ctx, "analytics:student:42",
		func(context.Context) ([]byte, error) { return []byte(`{"avg":85}`), nil }, cfg)
	if err != nil || tier != TierCompute || string(val) != `{"avg":85}` {
		t.Fatalf("expected recompute with new value, got %s %s %v", tier, val, err)
	}
}
