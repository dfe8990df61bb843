package cachekey

import (
	"errors"
	"testing"
	"time"

	"github.com/tutorium/analytics-cache/internal/domain"
)

func TestKeyString(t *testing.T) {
	k, err := New("analytics", "student", "42")
	if err != nil {
		t.Fatal(err)
	}
	if k.String() != "analytics:student:42" {
		t.Fatalf("expected analytics:student:42, got %s", k.String())
	}
}

func TestKeyDeterministic(t *testing.T) {
	a, err := New("analytics", "assignment", "7", "stats")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("analytics", "assignment", "7", "stats")
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatalf("identical queries produced different keys: %s vs %s", a, b)
	}
}

func TestKeyDistinctQueriesNeverCollide(t *testing.T) {
	a, err := New("analytics", "student", "4", "2")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("analytics", "student", "42")
	if err != nil {
		t.Fatal(err)
	}
	if a.String() == b.String() {
		t.Fatalf("distinct queries collided on %s", a)
	}
}

func TestParseRoundTrip(t *testing.T) {
	k, err := Parse("analytics:engagement:tutor-9:weekly")
	if err != nil {
		t.Fatal(err)
	}
	if k.Namespace != "analytics" || k.Kind != "engagement" {
		t.Fatalf("unexpected parse result: %+v", k)
	}
	if k.String() != "analytics:engagement:tutor-9:weekly" {
		t.Fatalf("round trip changed key: %s", k)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"analytics",
		"analytics:student",
		"analytics:student:",
		"analytics:stu dent:42",
		"analytics:student:4.2",
		"analytics:student:a=b",
		"analytics:student:*",
	} {
		if _, err := Parse(raw); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", raw, err)
		}
	}
}

func TestPatternMatches(t *testing.T) {
	p, err := ParsePattern("analytics:student:42:*")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Matches("analytics:student:42:progress") {
		t.Fatal("expected match for scoped key")
	}
	if p.Matches("analytics:student:421:progress") {
		t.Fatal("prefix must respect segment boundary")
	}
	if p.Matches("analytics:class:42:progress") {
		t.Fatal("unexpected match for other kind")
	}
}

func TestPatternBaseKey(t *testing.T) {
	p, err := ParsePattern("analytics:student:42:*")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.BaseKey(); got != "analytics:student:42" {
		t.Fatalf("expected base key analytics:student:42, got %s", got)
	}
	if _, err := Parse(p.BaseKey()); err != nil {
		t.Fatalf("base key must be a valid key, got %v", err)
	}
}

func TestPatternRejectsInnerWildcard(t *testing.T) {
	if _, err := ParsePattern("analytics:*:42"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParsePattern("analytics:student:42"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing wildcard, got %v", err)
	}
}

func TestTTLPolicyOverride(t *testing.T) {
	policy := NewTTLPolicy(map[string]TTLConfig{
		"student": {L1: 30 * time.Second, L2: 10 * time.Minute},
	})

	k, err := New("analytics", "student", "42")
	if err != nil {
		t.Fatal(err)
	}
	cfg := policy.For(k)
	if cfg.L1 != 30*time.Second || cfg.L2 != 10*time.Minute || cfg.L3 != 0 {
		t.Fatalf("override not applied: %+v", cfg)
	}

	other, err := New("analytics", "unknown-kind", "1")
	if err != nil {
		t.Fatal(err)
	}
	if policy.For(other) != FallbackTTL {
		t.Fatalf("expected fallback TTL for unknown kind")
	}
}
