// Package cachekey defines the cache key grammar and per-kind TTL policy.
//
// A key has the form namespace:kind:param[:param...], for example
// analytics:student:42 or analytics:assignment:7:stats. Segments are
// restricted to [A-Za-z0-9_-] so keys can be re-encoded losslessly for
// backends with narrower key alphabets. The package is pure: no I/O,
// no clock, no backend knowledge.
package cachekey

import (
	"fmt"
	"strings"

	"github.com/tutorium/analytics-cache/internal/domain"
)

// Separator joins key segments.
const Separator = ":"

// Wildcard is the trailing pattern wildcard segment.
const Wildcard = "*"

// Key is a validated, immutable cache key.
type Key struct {
	Namespace string
	Kind      string
	Params    []string
}

// New builds a Key and validates every segment.
func New(namespace, kind string, params ...string) (Key, error) {
	k := Key{Namespace: namespace, Kind: kind, Params: params}
	if err := k.validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Parse splits a raw key string into a validated Key.
func Parse(raw string) (Key, error) {
	segs := strings.Split(raw, Separator)
	if len(segs) < 3 {
		return Key{}, fmt.Errorf("%w: key %q needs namespace:kind:param", domain.ErrValidation, raw)
	}
	return New(segs[0], segs[1], segs[2:]...)
}

// String renders the canonical key form. Identical logical queries
// always produce identical strings; the segment charset excludes the
// separator, so distinct queries cannot collide.
func (k Key) String() string {
	parts := make([]string, 0, 2+len(k.Params))
	parts = append(parts, k.Namespace, k.Kind)
	parts = append(parts, k.Params...)
	return strings.Join(parts, Separator)
}

// Prefix returns the key rendered as a pattern prefix (no wildcard).
func (k Key) Prefix() string {
	return k.String() + Separator
}

func (k Key) validate() error {
	if err := checkSegment(k.Namespace, "namespace"); err != nil {
		return err
	}
	if err := checkSegment(k.Kind, "kind"); err != nil {
		return err
	}
	if len(k.Params) == 0 {
		return fmt.Errorf("%w: key %s:%s has no params", domain.ErrValidation, k.Namespace, k.Kind)
	}
	for _, p := range k.Params {
		if err := checkSegment(p, "param"); err != nil {
			return err
		}
	}
	return nil
}

func checkSegment(s, what string) error {
	if s == "" {
		return fmt.Errorf("%w: empty %s segment", domain.ErrValidation, what)
	}
	for _, r := range s {
		if !segmentRune(r) {
			return fmt.Errorf("%w: %s segment %q contains %q", domain.ErrValidation, what, s, r)
		}
	}
	return nil
}

func segmentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// Pattern is a validated invalidation pattern: one or more segments
// followed by a trailing ":*" wildcard, e.g. "analytics:student:42:*".
type Pattern struct {
	prefix string
}

// ParsePattern validates raw and returns a Pattern. Only a single
// trailing wildcard is supported.
func ParsePattern(raw string) (Pattern, error) {
	segs := strings.Split(raw, Separator)
	if len(segs) < 2 || segs[len(segs)-1] != Wildcard {
		return Pattern{}, fmt.Errorf("%w: pattern %q must end in %q", domain.ErrValidation, raw, Separator+Wildcard)
	}
	for _, s := range segs[:len(segs)-1] {
		if err := checkSegment(s, "pattern"); err != nil {
			return Pattern{}, err
		}
	}
	return Pattern{prefix: strings.Join(segs[:len(segs)-1], Separator) + Separator}, nil
}

// PatternFor builds the pattern covering every key under the given segments.
func PatternFor(segments ...string) (Pattern, error) {
	return ParsePattern(strings.Join(segments, Separator) + Separator + Wildcard)
}

// Prefix returns the literal prefix a key must carry to match,
// including the trailing separator.
func (p Pattern) Prefix() string { return p.prefix }

// BaseKey returns the exact key named by the pattern's segments,
// without wildcard or trailing separator: analytics:student:42:*
// yields analytics:student:42. The prefix match alone never covers
// this key, so invalidation of an identity must remove it explicitly.
func (p Pattern) BaseKey() string {
	return strings.TrimSuffix(p.prefix, Separator)
}

// String renders the pattern with its wildcard.
func (p Pattern) String() string { return p.prefix + Wildcard }

// Matches reports whether key falls under the pattern.
func (p Pattern) Matches(key string) bool {
	return strings.HasPrefix(key, p.prefix)
}
