// Package httpapi assembles the HTTP surface: staff API under /api,
// the public verification endpoint, health and metrics.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dochandler "labcert/internal/document/handler"
	"labcert/internal/identity"
	"labcert/internal/platform/metrics"
	platformmiddleware "labcert/internal/platform/middleware"
	"labcert/internal/ratelimit"
	serialhandler "labcert/internal/serial/handler"
	verifyhandler "labcert/internal/verification/handler"
	"labcert/pkg/platform/middleware/auth"
	"labcert/pkg/platform/middleware/metadata"
	"labcert/pkg/platform/middleware/requesttime"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Documents    *dochandler.Handler
	Serials      *serialhandler.Handler
	Verification *verifyhandler.Handler

	TokenValidator auth.TokenValidator
	AdminTokens    auth.SharedTokenVerifier
	RateLimiter    *ratelimit.Middleware
	Logger         *slog.Logger
}

// NewRouter wires middleware and routes. Staff routes require a bearer
// token; template administration additionally requires the admin role;
// /verify is public and rate limited.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(platformmiddleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public verification, throttled per client IP.
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Limit)
		}
		deps.Verification.Register(r)
	})

	// Staff API.
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(deps.TokenValidator, deps.Logger))
			deps.Documents.Register(r)
			deps.Serials.Register(r)
		})

		// Template administration: admin-role staff, or the shared
		// operations token when one is configured.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(deps.TokenValidator, deps.AdminTokens, identity.RoleAdmin, deps.Logger))
			deps.Documents.RegisterTemplates(r)
		})
	})

	return r
}
