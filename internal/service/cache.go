// Package service implements the cache orchestration logic on top of
// the tier ports.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tutorium/analytics-cache/internal/adapter/otel"
	"github.com/tutorium/analytics-cache/internal/domain/cachekey"
	"github.com/tutorium/analytics-cache/internal/domain/entry"
	"github.com/tutorium/analytics-cache/internal/port/cache"
	"github.com/tutorium/analytics-cache/internal/resilience"
)

// Tier names the cache level that satisfied a lookup.
type Tier string

const (
	TierL1      Tier = "l1"
	TierL2      Tier = "l2"
	TierL3      Tier = "l3"
	TierCompute Tier = "compute"
)

// ComputeFunc produces the value for a key when every tier misses.
// It is caller-supplied and opaque: the cache never retries it and
// returns its error unchanged.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// CacheService walks L1 -> L2 -> L3 -> compute, backfilling faster
// tiers on every lower-tier hit. It is the only entry point callers
// use; tiers are injected and owned by the caller's wiring.
//
// Concurrency: tier backends are internally safe; the only added
// coordination is a per-key single-flight group around the compute
// step, so a burst of concurrent misses for one key computes once.
// The group is never held around tier reads.
type CacheService struct {
	l1      cache.Tier
	l2      cache.Tier
	l3      cache.Tier
	breaker *resilience.Breaker
	monitor *Monitor
	metrics *otel.Metrics
	log     *slog.Logger
	flight  singleflight.Group
	now     func() time.Time
}

// NewCacheService creates a CacheService. l3 may be nil when no
// precomputed-aggregate store is configured; metrics may be nil when
// telemetry is disabled.
func NewCacheService(l1, l2, l3 cache.Tier, breaker *resilience.Breaker, monitor *Monitor, metrics *otel.Metrics, log *slog.Logger) *CacheService {
	return &CacheService{
		l1:      l1,
		l2:      l2,
		l3:      l3,
		breaker: breaker,
		monitor: monitor,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Get returns the cached value for key, computing it on a full miss.
// The returned Tier reports which level satisfied the lookup.
//
// Tier failures degrade to the next level and are never surfaced;
// only malformed keys and compute errors reach the caller, the
// latter unchanged.
func (s *CacheService) Get(ctx context.Context, rawKey string, compute ComputeFunc, ttl cachekey.TTLConfig) ([]byte, Tier, error) {
	if _, err := cachekey.Parse(rawKey); err != nil {
		return nil, "", err
	}
	start := s.now()
	val, tier, err := s.get(ctx, rawKey, compute, ttl)
	if err == nil && s.metrics != nil {
		s.metrics.GetDuration.Record(ctx, s.now().Sub(start).Seconds())
	}
	return val, tier, err
}

func (s *CacheService) get(ctx context.Context, key string, compute ComputeFunc, ttl cachekey.TTLConfig) ([]byte, Tier, error) {
	if e, ok := s.readTier(ctx, s.l1, key, TierL1); ok {
		s.recordHit(ctx, TierL1)
		return e.Value, TierL1, nil
	}

	if e, ok := s.readL2(ctx, key); ok {
		s.backfill(ctx, s.l1, key, e.Value, ttl.L1)
		s.recordHit(ctx, TierL2)
		return e.Value, TierL2, nil
	}

	if s.l3 != nil {
		if e, ok := s.readTier(ctx, s.l3, key, TierL3); ok {
			s.backfill(ctx, s.l1, key, e.Value, ttl.L1)
			s.backfillL2(ctx, key, e.Value, ttl.L2)
			s.recordHit(ctx, TierL3)
			return e.Value, TierL3, nil
		}
	}

	s.monitor.RecordMiss()
	if s.metrics != nil {
		s.metrics.Misses.Add(ctx, 1)
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		s.monitor.RecordComputed()
		computeStart := s.now()
		val, err := compute(ctx)
		if s.metrics != nil {
			s.metrics.Computed.Add(ctx, 1)
			s.metrics.ComputeSecs.Record(ctx, s.now().Sub(computeStart).Seconds())
		}
		if err != nil {
			return nil, err
		}
		s.storeAll(ctx, key, val, ttl)
		return val, nil
	})
	if err != nil {
		// Compute failures are the caller's business logic failing;
		// propagate unchanged.
		return nil, TierCompute, err
	}
	return v.([]byte), TierCompute, nil
}

// Set writes value into every tier with a configured TTL,
// unconditionally overwriting any existing entry.
func (s *CacheService) Set(ctx context.Context, rawKey string, value []byte, ttl cachekey.TTLConfig) error {
	if _, err := cachekey.Parse(rawKey); err != nil {
		return err
	}
	s.storeAll(ctx, rawKey, value, ttl)
	return nil
}

// Invalidate removes key from L1 and L2 synchronously. L3 refreshes
// only on its own schedule: long-lived aggregates tolerate a bounded
// staleness window instead of paying a store round-trip per event.
func (s *CacheService) Invalidate(ctx context.Context, rawKey string) error {
	if _, err := cachekey.Parse(rawKey); err != nil {
		return err
	}
	if err := s.l1.Delete(ctx, rawKey); err != nil {
		s.log.Warn("l1 delete failed", "key", rawKey, "error", err)
	}
	if err := s.breaker.Execute(func() error { return s.l2.Delete(ctx, rawKey) }); err != nil {
		s.log.Warn("l2 delete failed", "key", rawKey, "error", err)
	}
	if s.metrics != nil {
		s.metrics.Invalidated.Add(ctx, 1)
	}
	return nil
}

// InvalidatePattern removes every L1/L2 key under the pattern and
// returns how many were removed across both tiers.
func (s *CacheService) InvalidatePattern(ctx context.Context, rawPattern string) (int, error) {
	p, err := cachekey.ParsePattern(rawPattern)
	if err != nil {
		return 0, err
	}

	total := 0
	n, err := s.l1.DeletePattern(ctx, p.Prefix())
	if err != nil {
		s.log.Warn("l1 pattern delete failed", "pattern", rawPattern, "error", err)
	}
	total += n

	err = s.breaker.Execute(func() error {
		n, derr := s.l2.DeletePattern(ctx, p.Prefix())
		total += n
		return derr
	})
	if err != nil {
		s.log.Warn("l2 pattern delete failed", "pattern", rawPattern, "error", err)
	}

	if s.metrics != nil && total > 0 {
		s.metrics.Invalidated.Add(ctx, int64(total))
	}
	return total, nil
}

// Stats returns the monitor's current counter snapshot.
func (s *CacheService) Stats() Stats {
	return s.monitor.Stats()
}

// ResetStats zeroes the monitor counters. Cached data is untouched.
func (s *CacheService) ResetStats() {
	s.monitor.Reset()
}

// readTier reads and decodes one tier, treating every failure and
// every expired envelope as a miss.
func (s *CacheService) readTier(ctx context.Context, t cache.Tier, key string, tier Tier) (entry.Entry, bool) {
	data, found, err := t.Get(ctx, key)
	if err != nil {
		s.log.Warn("tier read failed", "tier", tier, "key", key, "error", err)
		return entry.Entry{}, false
	}
	if !found {
		return entry.Entry{}, false
	}
	e, err := entry.Decode(data)
	if err != nil {
		s.log.Warn("tier entry corrupt", "tier", tier, "key", key, "error", err)
		_ = t.Delete(ctx, key)
		return entry.Entry{}, false
	}
	if e.Expired(s.now()) {
		// Lazily clear the dead entry so later pattern scans stay small.
		_ = t.Delete(ctx, key)
		return entry.Entry{}, false
	}
	return e, true
}

// readL2 is readTier behind the circuit breaker.
func (s *CacheService) readL2(ctx context.Context, key string) (entry.Entry, bool) {
	var e entry.Entry
	var ok bool
	err := s.breaker.Execute(func() error {
		data, found, gerr := s.l2.Get(ctx, key)
		if gerr != nil {
			return gerr
		}
		if !found {
			return nil
		}
		dec, derr := entry.Decode(data)
		if derr != nil {
			_ = s.l2.Delete(ctx, key)
			return fmt.Errorf("l2 entry corrupt: %w", derr)
		}
		if dec.Expired(s.now()) {
			_ = s.l2.Delete(ctx, key)
			return nil
		}
		e, ok = dec, true
		return nil
	})
	if err != nil {
		s.log.Warn("l2 read degraded", "key", key, "error", err)
		return entry.Entry{}, false
	}
	return e, ok
}

// backfill writes value into a faster tier after a lower-tier hit.
func (s *CacheService) backfill(ctx context.Context, t cache.Tier, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := entry.New(value, ttl, s.now()).Encode()
	if err != nil {
		s.log.Warn("backfill encode failed", "key", key, "error", err)
		return
	}
	if err := t.Set(ctx, key, data, ttl); err != nil {
		s.log.Warn("backfill failed", "key", key, "error", err)
	}
}

func (s *CacheService) backfillL2(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := entry.New(value, ttl, s.now()).Encode()
	if err != nil {
		s.log.Warn("backfill encode failed", "key", key, "error", err)
		return
	}
	err = s.breaker.Execute(func() error { return s.l2.Set(ctx, key, data, ttl) })
	if err != nil {
		s.log.Warn("l2 backfill failed", "key", key, "error", err)
	}
}

// storeAll writes value into every tier with a configured TTL.
// Tier write failures are logged, never surfaced: a missed write just
// means the next read falls through one level deeper.
func (s *CacheService) storeAll(ctx context.Context, key string, value []byte, ttl cachekey.TTLConfig) {
	s.backfill(ctx, s.l1, key, value, ttl.L1)
	s.backfillL2(ctx, key, value, ttl.L2)
	if s.l3 != nil && ttl.L3 > 0 {
		s.backfill(ctx, s.l3, key, value, ttl.L3)
	}
}

// recordHit updates the monitor and export metrics for one tier hit.
func (s *CacheService) recordHit(ctx context.Context, tier Tier) {
	s.monitor.RecordHit(tier)
	if s.metrics != nil {
		s.metrics.RecordHit(ctx, string(tier))
	}
}
