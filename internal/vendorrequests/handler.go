package vendorrequests

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// Problem codes for workflow failures.
const (
	CodeInvalidTransition  = "invalid_transition"
	CodeMissingReason      = "missing_reason"
	CodePreconditionFailed = "precondition_failed"
)

// IdempotencyHeader carries the client supplied deduplication key.
const IdempotencyHeader = "Idempotency-Key"

// Guard wraps handlers with a capability check.
type Guard interface {
	RequireAny(caps ...workflow.Capability) func(http.Handler) http.Handler
}

// Handler exposes vendor request endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   Guard
	stream  http.Handler
}

// NewHandler constructs a Handler. stream may be nil, in which case the
// websocket feed is not mounted.
func NewHandler(logger *slog.Logger, service *Service, guard Guard, stream http.Handler) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, stream: stream}
}

// MountRoutes registers vendor request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	reviewers := h.guard.RequireAny(workflow.CapReviewCompliance, workflow.CapReviewFinance, workflow.CapReviewAdmin)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(workflow.CapRequestsView))
		r.Get("/", h.list)
		r.Get("/pending", h.pending)
		r.Get("/export.xlsx", h.export)
		if h.stream != nil {
			r.Handle("/stream", h.stream)
		}
		r.Get("/{id}", h.get)
		r.Get("/{id}/approvals", h.approvals)
	})
	r.With(h.guard.RequireAny(workflow.CapRequestsCreate)).Post("/", h.create)
	r.With(h.guard.RequireAny(workflow.CapRequestsEditDraft)).Put("/{id}", h.update)
	r.With(h.guard.RequireAny(workflow.CapRequestsSubmit)).Post("/{id}/submit", h.submit)
	r.With(h.guard.RequireAny(workflow.CapRequestsCancel)).Post("/{id}/cancel", h.cancel)
	r.With(h.guard.RequireAny(workflow.CapBankingDetails)).Post("/{id}/banking-details", h.banking)
	r.Group(func(r chi.Router) {
		r.Use(reviewers)
		r.Post("/{id}/approve", h.legacyDecision(true))
		r.Post("/{id}/reject", h.legacyDecision(false))
		r.Post("/{id}/request-info", h.requestInfo)
		r.Post("/{id}/{stage}/{decision}", h.review)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list vendor requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Pending(r.Context())
	if err != nil {
		h.fail(w, "list pending vendor requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get vendor request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) approvals(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	logs, err := h.service.Approvals(r.Context(), id)
	if err != nil {
		h.fail(w, "list vendor request approvals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in DraftInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), in, idempotencyKey(r))
	if err != nil {
		h.fail(w, "create vendor request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in DraftInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.UpdateDraft(r.Context(), shared.PrincipalFromContext(r.Context()), id, in)
	h.respond(w, "update vendor request", id, req, err)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Submit(r.Context(), shared.PrincipalFromContext(r.Context()), id, idempotencyKey(r))
	h.respond(w, "submit vendor request", id, req, err)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Cancel(r.Context(), shared.PrincipalFromContext(r.Context()), id, idempotencyKey(r))
	h.respond(w, "cancel vendor request", id, req, err)
}

func (h *Handler) banking(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in BankingInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.AddBankingDetails(r.Context(), shared.PrincipalFromContext(r.Context()), id, in, idempotencyKey(r))
	h.respond(w, "add banking details", id, req, err)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stage, err := workflow.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", httpx.CodeNotFound, err.Error())
		return
	}
	var approve bool
	switch strings.ToLower(chi.URLParam(r, "decision")) {
	case "approve":
		approve = true
	case "reject":
	default:
		http.NotFound(w, r)
		return
	}
	in, ok := decodeAction(w, r)
	if !ok {
		return
	}
	req, err := h.service.Review(r.Context(), shared.PrincipalFromContext(r.Context()), id, stage, approve, in, idempotencyKey(r))
	h.respond(w, "review vendor request", id, req, err)
}

func (h *Handler) legacyDecision(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in, ok := decodeAction(w, r)
		if !ok {
			return
		}
		actor := shared.PrincipalFromContext(r.Context())
		var req VendorRequest
		if approve {
			req, err = h.service.Approve(r.Context(), actor, id, in, idempotencyKey(r))
		} else {
			req, err = h.service.Reject(r.Context(), actor, id, in, idempotencyKey(r))
		}
		h.respond(w, "review vendor request", id, req, err)
	}
}

func (h *Handler) requestInfo(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, ok := decodeAction(w, r)
	if !ok {
		return
	}
	req, err := h.service.RequestInfo(r.Context(), shared.PrincipalFromContext(r.Context()), id, in, idempotencyKey(r))
	h.respond(w, "request vendor info", id, req, err)
}

func (h *Handler) respond(w http.ResponseWriter, msg string, id int64, req VendorRequest, err error) {
	if err != nil {
		if h.logger != nil {
			h.logger.Info(msg, slog.Int64("id", id), slog.Any("error", err))
		}
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	respondError(w, err)
}

// respondError extends httpx.RespondError with workflow failures.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", CodeInvalidTransition, err.Error())
	case errors.Is(err, workflow.ErrMissingReason):
		httpx.Problem(w, http.StatusBadRequest, "Missing Reason", CodeMissingReason, err.Error())
	case errors.Is(err, workflow.ErrPreconditionFailed):
		httpx.Problem(w, http.StatusBadRequest, "Precondition Failed", CodePreconditionFailed, err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func decodeAction(w http.ResponseWriter, r *http.Request) (ActionInput, bool) {
	var in ActionInput
	if r.ContentLength == 0 {
		return in, true
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return in, false
	}
	return in, true
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(IdempotencyHeader))
}

func listFilter(r *http.Request) (ListFilter, error) {
	limit, offset := httpx.PageParams(r, 50, 200)
	q := r.URL.Query()
	filter := ListFilter{Search: q.Get("q"), Limit: limit, Offset: offset}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			s, err := workflow.ParseStatus(part)
			if err != nil {
				return ListFilter{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
			}
			filter.Statuses = append(filter.Statuses, s)
		}
	}
	if q.Get("mine") == "true" {
		if p := shared.PrincipalFromContext(r.Context()); p != nil {
			filter.RequestedBy = p.UserID
		}
	}
	return filter, nil
}
