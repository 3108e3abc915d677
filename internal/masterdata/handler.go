package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
)

// Handler exposes read-only reference data to authenticated users.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountDepartments registers department routes.
func (h *Handler) MountDepartments(r chi.Router) {
	r.Get("/", h.listDepartments)
	r.Get("/{id}", h.getDepartment)
}

// MountCategories registers vendor category routes.
func (h *Handler) MountCategories(r chi.Router) {
	r.Get("/", h.listCategories)
	r.Get("/{id}", h.getCategory)
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Departments(r.Context(), activeOnly(r))
	if err != nil {
		h.fail(w, "list departments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Department(r.Context(), id)
	if err != nil {
		h.fail(w, "get department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Categories(r.Context(), activeOnly(r))
	if err != nil {
		h.fail(w, "list vendor categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Category(r.Context(), id)
	if err != nil {
		h.fail(w, "get vendor category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// activeOnly reads ?active=; anything unparsable lists everything.
func activeOnly(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	return v
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
