package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/da-luiz/Clear-Chain/internal/auth"
	"github.com/da-luiz/Clear-Chain/internal/files"
	"github.com/da-luiz/Clear-Chain/internal/masterdata"
	"github.com/da-luiz/Clear-Chain/internal/observability"
	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/rbac"
	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/vendors"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
	"github.com/da-luiz/Clear-Chain/jobs"
)

// HealthCheck probes a backing dependency for /healthz.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger                *slog.Logger
	Config                *Config
	AuthHandler           *auth.Handler
	AuthMiddleware        auth.Middleware
	RBACMiddleware        rbac.Middleware
	UsersHandler          *users.Handler
	VendorRequestsHandler *vendorrequests.Handler
	VendorsHandler        *vendors.Handler
	MasterdataHandler     *masterdata.Handler
	FilesHandler          *files.Handler
	JobHandler            *jobs.Handler
	Metrics               *observability.Metrics
	HealthChecks          map[string]HealthCheck
}

// NewRouter constructs the chi.Router with ClearChain defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", healthHandler(params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(params.AuthMiddleware.Require)
				params.AuthHandler.MountProtectedRoutes(r)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.Require)

			r.Route("/vendor-requests", params.VendorRequestsHandler.MountRoutes)
			if params.VendorsHandler != nil {
				r.Route("/vendors", params.VendorsHandler.MountRoutes)
			}
			if params.MasterdataHandler != nil {
				r.Route("/departments", params.MasterdataHandler.MountDepartments)
				r.Route("/vendor-categories", params.MasterdataHandler.MountCategories)
			}
			if params.FilesHandler != nil {
				r.Route("/files", params.FilesHandler.MountRoutes)
			}
			if params.UsersHandler != nil {
				r.Route("/users", func(r chi.Router) {
					r.Use(params.RBACMiddleware.RequireAny(workflow.CapUsersManage))
					params.UsersHandler.MountRoutes(r)
				})
			}
			r.Route("/rbac", params.RBACMiddleware.MountRoutes)
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Use(params.RBACMiddleware.RequireAny(workflow.CapUsersManage))
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.RespondError(w, httpx.ErrNotFound)
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httpx.JSON(w, status, resp)
	}
}
