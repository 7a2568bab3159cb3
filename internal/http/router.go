// Package httpapi composes the public HTTP surface: middleware chain, route
// groups and their authentication.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	interventionhandler "rescue/internal/intervention/handler"
	"rescue/internal/platform/metrics"
	"rescue/internal/platform/middleware"
	ratelimitmw "rescue/internal/ratelimit/middleware"
	"rescue/internal/ratelimit/models"
	respondanthandler "rescue/internal/respondant/handler"
	userhandler "rescue/internal/user/handler"
	"rescue/pkg/platform/httputil"
	adminmw "rescue/pkg/platform/middleware/admin"
	authmw "rescue/pkg/platform/middleware/auth"
	"rescue/pkg/platform/middleware/metadata"
	"rescue/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router mounts. Nil handlers leave their routes out.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Tokens         authmw.JWTValidator
	AdminToken     string
	RequestTimeout time.Duration
	DocsDir        string
	Limiter        *ratelimitmw.Middleware

	Users         *userhandler.Handler
	Respondants   *respondanthandler.Handler
	Interventions *interventionhandler.Handler
	Notifications http.Handler
	Health        map[string]HealthCheck
}

// NewRouter builds the chi router. Websocket subscribers are mounted outside
// the request timeout.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(d.Metrics))

	r.Get("/healthz", healthHandler(d.Health, logger))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}
	if d.DocsDir != "" {
		r.Get("/apidoc", http.RedirectHandler("/apidoc/", http.StatusMovedPermanently).ServeHTTP)
		r.Handle("/apidoc/*", http.StripPrefix("/apidoc/", http.FileServer(http.Dir(d.DocsDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.RequestTimeout))
		r.Use(middleware.ContentTypeJSON)

		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.RateLimit(models.ClassAuth))
			}
			if d.Users != nil {
				d.Users.RegisterPublic(r)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(d.AdminToken, logger))
			if d.Interventions != nil {
				d.Interventions.RegisterAdmin(r)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(d.Tokens, logger))
			if d.Limiter != nil {
				r.Use(d.Limiter.ByMethod())
			}
			if d.Users != nil {
				d.Users.Register(r)
			}
			if d.Respondants != nil {
				d.Respondants.Register(r)
			}
			if d.Interventions != nil {
				d.Interventions.Register(r)
			}
		})
	})

	if d.Notifications != nil {
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(d.Tokens, logger))
			r.Method(http.MethodGet, "/notifications/ws", d.Notifications)
		})
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
