// Package event defines the platform domain events that drive cache
// invalidation, and the pure mapping from an event to the key patterns
// it invalidates.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tutorium/analytics-cache/internal/domain"
	"github.com/tutorium/analytics-cache/internal/domain/cachekey"
)

// Type identifies the kind of domain event.
type Type string

const (
	TypeGradeUpdated      Type = "grade.updated"
	TypeContentViewed     Type = "content.viewed"
	TypeContentPublished  Type = "content.published"
	TypeEnrollmentChanged Type = "enrollment.changed"
	TypeSessionCompleted  Type = "session.completed"
)

// InvalidationEvent is a single immutable domain fact consumed by the
// invalidation trigger.
type InvalidationEvent struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	Params     map[string]string `json:"params"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// New builds an event with a fresh ID and the current timestamp.
func New(t Type, params map[string]string) InvalidationEvent {
	return InvalidationEvent{
		ID:         uuid.NewString(),
		Type:       t,
		Params:     params,
		OccurredAt: time.Now().UTC(),
	}
}

// Decode parses an event from its JSON wire form.
func Decode(data []byte) (InvalidationEvent, error) {
	var ev InvalidationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return InvalidationEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return InvalidationEvent{}, fmt.Errorf("%w: event has no type", domain.ErrValidation)
	}
	return ev, nil
}

// Encode renders the event to its JSON wire form.
func (ev InvalidationEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Namespace scopes every derived pattern.
const Namespace = "analytics"

// Patterns derives the cache-key patterns an event invalidates.
// The mapping is pure and deterministic: the same event always yields
// the same patterns, so replayed or duplicated events are harmless.
// An event type with no registered mapping yields no patterns.
func Patterns(ev InvalidationEvent) ([]cachekey.Pattern, error) {
	mapper, ok := mappers[ev.Type]
	if !ok {
		return nil, nil
	}
	return mapper(ev.Params)
}

type mapFunc func(params map[string]string) ([]cachekey.Pattern, error)

var mappers = map[Type]mapFunc{
	TypeGradeUpdated: func(p map[string]string) ([]cachekey.Pattern, error) {
		return patternsFor(p, [][2]string{
			{"assignment", "assignment_id"},
			{"student", "student_id"},
		})
	},
	TypeContentViewed: func(p map[string]string) ([]cachekey.Pattern, error) {
		return patternsFor(p, [][2]string{
			{"student", "student_id"},
		})
	},
	TypeContentPublished: func(p map[string]string) ([]cachekey.Pattern, error) {
		return patternsFor(p, [][2]string{
			{"subject", "subject_id"},
			{"class", "class_id"},
		})
	},
	TypeEnrollmentChanged: func(p map[string]string) ([]cachekey.Pattern, error) {
		return patternsFor(p, [][2]string{
			{"class", "class_id"},
			{"student", "student_id"},
		})
	},
	TypeSessionCompleted: func(p map[string]string) ([]cachekey.Pattern, error) {
		return patternsFor(p, [][2]string{
			{"engagement", "tutor_id"},
			{"student", "student_id"},
		})
	},
}

// patternsFor builds one pattern per (kind, param) pair present in the
// event. A pair whose param is absent is skipped rather than failed:
// publishers may omit optional scope (e.g. a platform-wide publish has
// no class_id).
func patternsFor(params map[string]string, pairs [][2]string) ([]cachekey.Pattern, error) {
	out := make([]cachekey.Pattern, 0, len(pairs))
	for _, pair := range pairs {
		kind, paramName := pair[0], pair[1]
		id, ok := params[paramName]
		if !ok || id == "" {
			continue
		}
		p, err := cachekey.PatternFor(Namespace, kind, id)
		if err != nil {
			return nil, fmt.Errorf("event param %s: %w", paramName, err)
		}
		out = append(out, p)
	}
	return out, nil
}
