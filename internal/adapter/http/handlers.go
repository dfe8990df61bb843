// Package http exposes the cache admin API: stats, warming, and
// manual invalidation. The read path never goes through HTTP; callers
// embed the orchestrator directly.
package http

import (
	"net/http"

	"github.com/tutorium/analytics-cache/internal/domain/event"
	"github.com/tutorium/analytics-cache/internal/port/messagequeue"
	"github.com/tutorium/analytics-cache/internal/service"
)

// HealthInfo names the backends the service is wired to.
type HealthInfo struct {
	Postgres string `json:"postgres,omitempty"`
	NATS     string `json:"nats,omitempty"`
}

// Handlers bundles the services the admin API fronts.
type Handlers struct {
	cache  *service.CacheService
	warmer *service.Warmer
	queue  messagequeue.Queue
	health HealthInfo
}

// NewHandlers creates the admin API handlers. warmer and queue may be
// nil when no compute provider or event stream is wired; the
// corresponding endpoints then return 503.
func NewHandlers(cache *service.CacheService, warmer *service.Warmer, queue messagequeue.Queue, health HealthInfo) *Handlers {
	return &Handlers{cache: cache, warmer: warmer, queue: queue, health: health}
}

// GetStats returns the monitor's counter snapshot.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// ResetStats zeroes the monitor counters.
func (h *Handlers) ResetStats(w http.ResponseWriter, _ *http.Request) {
	h.cache.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

type warmRequest struct {
	Identities []string `json:"identities"`
}

// Warm computes and stores the requested query identities.
func (h *Handlers) Warm(w http.ResponseWriter, r *http.Request) {
	if h.warmer == nil {
		writeError(w, http.StatusServiceUnavailable, "no compute provider configured")
		return
	}
	req, ok := readJSON[warmRequest](w, r)
	if !ok {
		return
	}
	if len(req.Identities) == 0 {
		writeError(w, http.StatusBadRequest, "identities is required")
		return
	}
	writeJSON(w, http.StatusOK, h.warmer.Warm(r.Context(), req.Identities))
}

type invalidateRequest struct {
	Key string `json:"key"`
}

// Invalidate removes one key from L1 and L2.
func (h *Handlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[invalidateRequest](w, r)
	if !ok {
		return
	}
	if err := h.cache.Invalidate(r.Context(), req.Key); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type invalidatePatternRequest struct {
	Pattern string `json:"pattern"`
}

type invalidatePatternResponse struct {
	Removed int `json:"removed"`
}

// InvalidatePattern removes every key under a trailing-wildcard
// pattern and reports how many entries were removed across tiers.
func (h *Handlers) InvalidatePattern(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[invalidatePatternRequest](w, r)
	if !ok {
		return
	}
	n, err := h.cache.InvalidatePattern(r.Context(), req.Pattern)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invalidatePatternResponse{Removed: n})
}

type publishEventRequest struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params"`
}

type publishEventResponse struct {
	EventID string `json:"event_id"`
}

// PublishEvent injects a domain event into the invalidation stream.
// Operators use it to replay an invalidation without touching the
// publishing services; the event flows through the same stream and
// consumer as the real thing.
func (h *Handlers) PublishEvent(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "no event stream configured")
		return
	}
	req, ok := readJSON[publishEventRequest](w, r)
	if !ok {
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	ev := event.New(event.Type(req.Type), req.Params)
	data, err := ev.Encode()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.queue.Publish(r.Context(), messagequeue.SubjectEventPrefix+req.Type, data); err != nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, publishEventResponse{EventID: ev.ID})
}

type healthResponse struct {
	Status string `json:"status"`
	HealthInfo
}

// Health reports process liveness and the configured backend targets.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", HealthInfo: h.health})
}
