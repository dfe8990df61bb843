package service

import (
	"context"
	"log/slog"

	"github.com/tutorium/analytics-cache/internal/domain/event"
	"github.com/tutorium/analytics-cache/internal/port/messagequeue"
)

// Invalidator translates platform domain events into cache pattern
// invalidations, decoupling business logic from cache internals.
// The event-to-pattern mapping itself is pure and lives in the event
// package; this type only owns the queue plumbing and the cache calls.
type Invalidator struct {
	cache *CacheService
	log   *slog.Logger
}

// NewInvalidator creates an Invalidator driving the given cache.
func NewInvalidator(cache *CacheService, log *slog.Logger) *Invalidator {
	return &Invalidator{cache: cache, log: log}
}

// Start subscribes to the domain event subjects. The returned cancel
// function stops the subscription.
func (inv *Invalidator) Start(ctx context.Context, queue messagequeue.Queue) (func(), error) {
	return queue.Subscribe(ctx, messagequeue.SubjectEvents, inv.HandleEvent)
}

// HandleEvent processes one domain event. Replayed or duplicated
// events are harmless: invalidating already-absent keys is a no-op,
// so the handler is idempotent.
//
// Malformed events are logged and dropped rather than redelivered;
// no number of retries fixes a bad payload.
func (inv *Invalidator) HandleEvent(ctx context.Context, subject string, data []byte) error {
	ev, err := event.Decode(data)
	if err != nil {
		inv.log.Error("dropping malformed event", "subject", subject, "error", err)
		return nil
	}

	patterns, err := event.Patterns(ev)
	if err != nil {
		inv.log.Error("dropping unmappable event", "subject", subject, "event_id", ev.ID, "error", err)
		return nil
	}

	removed := 0
	for _, p := range patterns {
		// The prefix sweep covers keys under the identity; the
		// identity's own base key (the warmer's canonical form) is
		// cached too and must go with it.
		if err := inv.cache.Invalidate(ctx, p.BaseKey()); err != nil {
			inv.log.Error("base key invalidation failed", "key", p.BaseKey(), "event_id", ev.ID, "error", err)
		}
		n, err := inv.cache.InvalidatePattern(ctx, p.String())
		if err != nil {
			inv.log.Error("pattern invalidation failed", "pattern", p.String(), "event_id", ev.ID, "error", err)
			continue
		}
		removed += n
	}

	inv.log.Debug("event processed",
		"event_id", ev.ID,
		"type", ev.Type,
		"patterns", len(patterns),
		"keys_removed", removed,
	)
	return nil
}
