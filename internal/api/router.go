package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/ashara-studio/ashara-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", s.handleMetrics())

		// Public auth endpoints
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleAdmin))
				r.Get("/admin/ping", s.handlePing)
				r.Get("/audit", s.handleListAuditLogs)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleClient))
				r.Get("/client/ping", s.handlePing)
			})
		})
	})

	return r
}

// handleHealth reports server status and probes each registered dependency.
// Any failing dependency turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	overall := "ok"

	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			checks[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			overall = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"status":  overall,
		"version": s.version,
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	writeJSON(w, status, body)
}

// handlePing confirms the caller passed the role gate in front of it.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"role":   identity.Role,
	})
}
