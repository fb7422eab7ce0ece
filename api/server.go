/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/athletes/*       Plan, sessions, readiness, adaptation previews
  /api/adaptations/*    Decision recording
  /api/scenarios/*      Demo scenarios (dev only)

SECURITY NOTE:
  Identity resolution trusts the route parameter / X-Athlete-ID header.
  Real authentication terminates upstream; see identity.go for the seam.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", AthleteIDHeader, IdempotencyKeyHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Athlete routes
		r.Route("/athletes/{athleteID}", func(r chi.Router) {
			r.Get("/plan", h.GetPlan)
			r.Get("/sessions", h.GetSessions)
			r.Get("/readiness", h.GetReadiness)
			r.Post("/adaptations/preview", h.PreviewAdaptation)
		})

		// Decision routes
		r.Route("/adaptations", func(r chi.Router) {
			r.Post("/{previewID}/decision", h.RecordDecision)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetStore)
		})
	})

	return r
}
