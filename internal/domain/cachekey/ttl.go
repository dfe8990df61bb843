package cachekey

import "time"

// TTLConfig holds per-tier time-to-live values for one query kind.
// A zero duration means the tier is skipped for writes of that kind.
type TTLConfig struct {
	L1 time.Duration
	L2 time.Duration
	L3 time.Duration
}

// Default TTL triples per query kind. Faster tiers are kept
// shorter-lived than slower ones so a fast tier can never serve data
// staler than what the tier below it would return.
var defaultTTLs = map[string]TTLConfig{
	"student":    {L1: time.Minute, L2: time.Hour, L3: 24 * time.Hour},
	"assignment": {L1: 5 * time.Minute, L2: 6 * time.Hour, L3: 48 * time.Hour},
	"class":      {L1: 5 * time.Minute, L2: 6 * time.Hour, L3: 48 * time.Hour},
	"engagement": {L1: 10 * time.Minute, L2: 12 * time.Hour, L3: 72 * time.Hour},
	"subject":    {L1: 10 * time.Minute, L2: 12 * time.Hour, L3: 72 * time.Hour},
}

// FallbackTTL applies to kinds with no explicit policy.
var FallbackTTL = TTLConfig{L1: time.Minute, L2: time.Hour}

// TTLPolicy maps query kinds to TTL triples. Immutable after construction.
type TTLPolicy struct {
	byKind map[string]TTLConfig
}

// NewTTLPolicy returns the default policy with overrides applied on top.
func NewTTLPolicy(overrides map[string]TTLConfig) *TTLPolicy {
	m := make(map[string]TTLConfig, len(defaultTTLs)+len(overrides))
	for kind, cfg := range defaultTTLs {
		m[kind] = cfg
	}
	for kind, cfg := range overrides {
		m[kind] = cfg
	}
	return &TTLPolicy{byKind: m}
}

// For returns the TTL triple for a key's kind, falling back to FallbackTTL.
func (p *TTLPolicy) For(k Key) TTLConfig {
	if cfg, ok := p.byKind[k.Kind]; ok {
		return cfg
	}
	return FallbackTTL
}
