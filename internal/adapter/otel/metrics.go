package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "analytics-cache"

// Metrics holds all cache metric instruments. Instruments are
// monotonic export-side counters; the operator-resettable stats
// window lives in the service Monitor.
type Metrics struct {
	TierHits    metric.Int64Counter
	Misses      metric.Int64Counter
	Computed    metric.Int64Counter
	Invalidated metric.Int64Counter
	Warmed      metric.Int64Counter
	GetDuration metric.Float64Histogram
	ComputeSecs metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TierHits, err = meter.Int64Counter("cache.tier.hits",
		metric.WithDescription("Cache hits by tier"))
	if err != nil {
		return nil, err
	}

	m.Misses, err = meter.Int64Counter("cache.misses",
		metric.WithDescription("Lookups that fell through every tier"))
	if err != nil {
		return nil, err
	}

	m.Computed, err = meter.Int64Counter("cache.computed",
		metric.WithDescription("Compute-function invocations"))
	if err != nil {
		return nil, err
	}

	m.Invalidated, err = meter.Int64Counter("cache.invalidated",
		metric.WithDescription("Keys removed by invalidation"))
	if err != nil {
		return nil, err
	}

	m.Warmed, err = meter.Int64Counter("cache.warmed",
		metric.WithDescription("Identities populated by the warmer"))
	if err != nil {
		return nil, err
	}

	m.GetDuration, err = meter.Float64Histogram("cache.get.duration_seconds",
		metric.WithDescription("End-to-end Get latency in seconds"))
	if err != nil {
		return nil, err
	}

	m.ComputeSecs, err = meter.Float64Histogram("cache.compute.duration_seconds",
		metric.WithDescription("Compute-function latency in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordHit increments the per-tier hit counter.
func (m *Metrics) RecordHit(ctx context.Context, tier string) {
	m.TierHits.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}
