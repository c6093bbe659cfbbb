// Package http wires the transport layer: middleware chain, caller-facing
// routes behind JWT auth, and the privileged surface behind the admin token.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	distributorHandler "mintgate/internal/distributor/handler"
	mintHandler "mintgate/internal/mint/handler"
	platformMetrics "mintgate/internal/platform/metrics"
	stakingHandler "mintgate/internal/staking/handler"
	"mintgate/pkg/platform/httputil"
	"mintgate/pkg/platform/middleware/admin"
	"mintgate/pkg/platform/middleware/auth"
	"mintgate/pkg/platform/middleware/request"
	"mintgate/pkg/platform/middleware/requesttime"
)

// HealthChecker reports dependency liveness for the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config collects everything the router needs.
type Config struct {
	Logger     *slog.Logger
	Metrics    *platformMetrics.Metrics
	Validator  *auth.Validator
	AdminToken string

	Mint        *mintHandler.Handler
	Staking     *stakingHandler.Handler
	Distributor *distributorHandler.Handler

	// Optional dependency health checks, keyed by name.
	HealthChecks map[string]HealthChecker
}

// NewRouter assembles the full route tree.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	if cfg.Metrics != nil {
		r.Use(countRequests(cfg.Metrics))
	}

	r.Get("/healthz", handleHealth(cfg.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Caller-facing surface: every route resolves the caller from a bearer
	// token before the handler runs.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCaller(cfg.Validator, cfg.Logger))
		cfg.Mint.Register(r)
		cfg.Staking.Register(r)
		cfg.Distributor.Register(r)
	})

	// Privileged surface.
	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		cfg.Mint.RegisterAdmin(r)
		cfg.Staking.RegisterAdmin(r)
		cfg.Distributor.RegisterAdmin(r)
	})

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		healthy := true
		for name, check := range checks {
			if err := check.Health(r.Context()); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, status)
	}
}

func countRequests(m *platformMetrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if ctx := chi.RouteContext(r.Context()); ctx != nil {
				if pattern := ctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		})
	}
}
