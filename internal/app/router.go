package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mtvts/mtvts/internal/auth"
	"github.com/mtvts/mtvts/internal/observability"
	"github.com/mtvts/mtvts/internal/payments"
	"github.com/mtvts/mtvts/internal/platform/httpx"
	"github.com/mtvts/mtvts/internal/rbac"
	"github.com/mtvts/mtvts/internal/reports"
	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/tickets"
	"github.com/mtvts/mtvts/internal/users"
	"github.com/mtvts/mtvts/internal/violations"
	"github.com/mtvts/mtvts/jobs"
)

// HealthCheck checks a dependency for /healthz.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Checks  map[string]HealthCheck
	RBAC    rbac.Middleware

	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	ViolationsHandler *violations.Handler
	TicketsHandler    *tickets.Handler
	PaymentsHandler   *payments.Handler
	ReportsHandler    *reports.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", healthHandler(params.Checks))
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]string{"message": "pong"})
		})
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.ViolationsHandler != nil {
			params.ViolationsHandler.MountRoutes(r)
		}
		if params.TicketsHandler != nil {
			params.TicketsHandler.MountRoutes(r)
		}
		if params.PaymentsHandler != nil {
			r.Route("/clerk/payments", params.PaymentsHandler.MountRoutes)
		}

		r.Route("/admin", func(r chi.Router) {
			if params.ViolationsHandler != nil {
				r.Route("/violations", params.ViolationsHandler.MountAdminRoutes)
			}
			if params.PaymentsHandler != nil {
				r.Route("/payments", params.PaymentsHandler.MountAdminRoutes)
			}
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.ReportsHandler != nil {
				params.ReportsHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Use(params.RBAC.RequireRole(shared.RoleAdmin))
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		body := map[string]any{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		httpx.JSON(w, status, body)
	}
}
