package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorium/analytics-cache/internal/adapter/otel"
	"github.com/tutorium/analytics-cache/internal/domain/cachekey"
)

// ComputeProvider resolves a query identity to its freshly computed
// aggregate. It fronts the platform's aggregation queries; the warmer
// itself carries no aggregation logic.
type ComputeProvider interface {
	Compute(ctx context.Context, key cachekey.Key) ([]byte, error)
}

// WarmStatus reports the outcome of warming one identity.
type WarmStatus struct {
	Status string `json:"status"` // "warmed" or "failed"
	Error  string `json:"error,omitempty"`
}

const (
	statusWarmed = "warmed"
	statusFailed = "failed"
)

// Warmer proactively populates the cache for configured query
// identities ahead of expected load. It talks to the cache only
// through the orchestrator's public interface.
type Warmer struct {
	cache    *CacheService
	provider ComputeProvider
	policy   *cachekey.TTLPolicy
	metrics  *otel.Metrics
	log      *slog.Logger
}

// NewWarmer creates a Warmer. metrics may be nil when telemetry is
// disabled.
func NewWarmer(cache *CacheService, provider ComputeProvider, policy *cachekey.TTLPolicy, metrics *otel.Metrics, log *slog.Logger) *Warmer {
	return &Warmer{cache: cache, provider: provider, policy: policy, metrics: metrics, log: log}
}

// Warm computes and stores every identity, returning a per-identity
// status map. Identities are processed independently: one failure
// never aborts the rest. Warming is idempotent; existing entries are
// simply overwritten with fresh values.
func (w *Warmer) Warm(ctx context.Context, identities []string) map[string]WarmStatus {
	results := make(map[string]WarmStatus, len(identities))

	for _, id := range identities {
		key, err := cachekey.Parse(id)
		if err != nil {
			results[id] = WarmStatus{Status: statusFailed, Error: err.Error()}
			continue
		}

		value, err := w.provider.Compute(ctx, key)
		if err != nil {
			w.log.Warn("warm compute failed", "identity", id, "error", err)
			results[id] = WarmStatus{Status: statusFailed, Error: err.Error()}
			continue
		}

		if err := w.cache.Set(ctx, id, value, w.policy.For(key)); err != nil {
			results[id] = WarmStatus{Status: statusFailed, Error: err.Error()}
			continue
		}
		if w.metrics != nil {
			w.metrics.Warmed.Add(ctx, 1)
		}
		results[id] = WarmStatus{Status: statusWarmed}
	}

	return results
}

// Run warms the configured identities on a fixed interval until ctx
// is cancelled. The first pass runs immediately so a fresh deploy
// does not wait a full interval with a cold cache.
func (w *Warmer) Run(ctx context.Context, interval time.Duration, identities []string) {
	w.runOnce(ctx, identities)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx, identities)
		}
	}
}

func (w *Warmer) runOnce(ctx context.Context, identities []string) {
	results := w.Warm(ctx, identities)
	warmed, failed := 0, 0
	for _, st := range results {
		if st.Status == statusWarmed {
			warmed++
		} else {
			failed++
		}
	}
	w.log.Info("warm pass complete", "warmed", warmed, "failed", failed)
}
