// Package httptransport exposes the error handler and the security audit log
// to the admin console over HTTP.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"courtside/pkg/platform/middleware/metadata"
	"courtside/pkg/platform/middleware/requesttime"
)

// NewRouter mounts the API behind the request-context middleware chain.
// metricsHandler is served on /metrics when non-nil.
func NewRouter(h *Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requesttime.Middleware)
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(metadata.Actor)

	r.Get("/healthz", h.HandleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Route("/api", h.Register)
	return r
}
