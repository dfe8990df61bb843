package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the admin API on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1/cache", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Post("/stats/reset", h.ResetStats)
		r.Post("/warm", h.Warm)
		r.Post("/invalidate", h.Invalidate)
		r.Post("/invalidate-pattern", h.InvalidatePattern)
	})

	r.Post("/api/v1/events", h.PublishEvent)
}
