package service

import "sync/atomic"

// Monitor accumulates per-tier hit/miss counters. It is a read-only
// observer of the orchestrator: recording never alters cache
// behavior, and Reset never touches cached data.
//
// Counters are process-local and operator-resettable (per reporting
// window); the monotonic export-side counters live in the otel
// instruments.
type Monitor struct {
	hitsL1   atomic.Int64
	hitsL2   atomic.Int64
	hitsL3   atomic.Int64
	misses   atomic.Int64
	computed atomic.Int64
}

// NewMonitor creates a Monitor with zeroed counters.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	HitsL1   int64   `json:"hits_l1"`
	HitsL2   int64   `json:"hits_l2"`
	HitsL3   int64   `json:"hits_l3"`
	Misses   int64   `json:"misses"`
	Computed int64   `json:"computed"`
	HitRate  float64 `json:"hit_rate"`
}

// RecordHit increments the counter for the tier that satisfied a Get.
func (m *Monitor) RecordHit(tier Tier) {
	switch tier {
	case TierL1:
		m.hitsL1.Add(1)
	case TierL2:
		m.hitsL2.Add(1)
	case TierL3:
		m.hitsL3.Add(1)
	}
}

// RecordMiss increments the full-miss counter.
func (m *Monitor) RecordMiss() {
	m.misses.Add(1)
}

// RecordComputed increments the compute-invocation counter.
func (m *Monitor) RecordComputed() {
	m.computed.Add(1)
}

// Stats returns the current counters and derived hit rate.
// The hit rate is 0 when no lookups have been recorded.
func (m *Monitor) Stats() Stats {
	s := Stats{
		HitsL1:   m.hitsL1.Load(),
		HitsL2:   m.hitsL2.Load(),
		HitsL3:   m.hitsL3.Load(),
		Misses:   m.misses.Load(),
		Computed: m.computed.Load(),
	}
	hits := s.HitsL1 + s.HitsL2 + s.HitsL3
	if total := hits + s.Misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Reset zeroes all counters. Intended for periodic reporting windows.
func (m *Monitor) Reset() {
	m.hitsL1.Store(0)
	m.hitsL2.Store(0)
	m.hitsL3.Store(0)
	m.misses.Store(0)
	m.computed.Store(0)
}
