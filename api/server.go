/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Wires URLs to handlers. User surfaces sit behind the JWT middleware;
  the sweep endpoint carries its own shared-secret check; the processor
  webhook authenticates by payload signature.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the app frontend

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

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, auth *Auth) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://app.kinen.example", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// User surfaces (bearer token)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Post("/profile", h.CreateProfile)

			r.Route("/challenges", func(r chi.Router) {
				r.Post("/", h.StartChallenge)
				r.Get("/current", h.GetCurrentChallenge)
				r.Post("/check", h.CheckCompletion)
			})

			r.Route("/records", func(r chi.Router) {
				r.Get("/", h.ListRecords)
				r.Post("/", h.SubmitRecord)
			})
		})

		// Scheduler surface (shared secret, checked in the handler)
		r.Post("/sweep", h.Sweep)

		// Processor surface (signature-verified payload)
		r.Post("/webhooks/stripe", h.StripeWebhook)
	})

	return r
}
