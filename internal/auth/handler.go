package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/users"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers public auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

// MountProtectedRoutes registers routes that need an authenticated principal.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type meResponse struct {
	User        users.Profile        `json:"user"`
	Permissions workflow.Permissions `json:"permissions"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginRequest
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", httpx.CodeValidation, "username and password are required")
		return
	}
	result, err := h.service.Login(r.Context(), form.Username, form.Password, ClientMeta{RemoteAddr: r.RemoteAddr, UserAgent: r.UserAgent()})
	if err != nil {
		if h.logger != nil {
			h.logger.Info("login failed", slog.String("username", form.Username), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal != nil {
		if err := h.service.Logout(r.Context(), principal.SessionID); err != nil && h.logger != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	profile, err := h.service.Profile(r.Context(), principal)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{User: profile, Permissions: workflow.PermissionsFor(principal.Role)})
}
