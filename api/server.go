/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ADMIN GATING:
  The /api/admin subtree is protected by a shared-secret X-API-Key
  header, checked here rather than in the engine. An empty configured
  key disables the admin surface entirely.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. adminKey is
// the shared admin credential; corsOrigins lists allowed origins.
func NewRouter(h *Handler, adminKey string, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public redemption endpoint
		r.Post("/access/validate", h.ValidateCode)

		// Admin routes
		r.Route("/admin/access", func(r chi.Router) {
			r.Use(requireAPIKey(adminKey))
			r.Post("/create", h.CreateCode)
			r.Get("/list", h.ListCodes)
			r.Post("/disable/{code}", h.DisableCode)
			r.Post("/update/{code}", h.UpdateCode)
			r.Get("/logs", h.GetLogs)
			r.Get("/stats", h.GetStats)
		})
	})

	return r
}

// requireAPIKey gates a subtree behind the shared admin credential.
func requireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, http.StatusForbidden, "Admin API is not configured", nil)
				return
			}
			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "Invalid API key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
