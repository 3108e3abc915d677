package vendors

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// Guard wraps handlers with a capability check.
type Guard interface {
	RequireAny(caps ...workflow.Capability) func(http.Handler) http.Handler
}

// Handler exposes vendor endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   Guard
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers vendor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(workflow.CapVendorsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(workflow.CapVendorsEdit))
		r.Put("/{id}", h.update)
		r.Post("/{id}/{action}", h.changeStatus)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.PageParams(r, 50, 200)
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), ListFilter{
		Status: Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Search: q.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, "list vendors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

type statusRequest struct {
	Note string `json:"note"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in statusRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	var actor int64
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		actor = p.UserID
	}
	v, err := h.service.ChangeStatus(r.Context(), actor, id, StatusAction(chi.URLParam(r, "action")), in.Note)
	if err != nil {
		h.fail(w, "change vendor status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
