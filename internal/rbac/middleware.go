package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current user has at least one of the required capabilities.
func (m Middleware) RequireAny(caps ...workflow.Capability) func(http.Handler) http.Handler {
	return m.require(false, caps)
}

// RequireAll ensures the current user has all required capabilities.
func (m Middleware) RequireAll(caps ...workflow.Capability) func(http.Handler) http.Handler {
	return m.require(true, caps)
}

func (m Middleware) require(all bool, caps []workflow.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if err := m.Service.Authorize(principal, all, caps...); err != nil {
				if m.Logger != nil && principal != nil {
					m.Logger.Info("rbac denied", slog.Int64("user_id", principal.UserID), slog.String("path", r.URL.Path), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MountRoutes exposes the capability matrix.
func (m Middleware) MountRoutes(r chi.Router) {
	r.Get("/grants", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, m.Service.Grants())
	})
}
