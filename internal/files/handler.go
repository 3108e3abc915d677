package files

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

// Guard wraps handlers with a capability check.
type Guard interface {
	RequireAny(caps ...workflow.Capability) func(http.Handler) http.Handler
}

// Handler exposes upload and download endpoints.
type Handler struct {
	storage *Storage
	guard   Guard
	logger  *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(storage *Storage, guard Guard, logger *slog.Logger) *Handler {
	return &Handler{storage: storage, guard: guard, logger: logger}
}

// MountRoutes registers file routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(workflow.CapRequestsCreate, workflow.CapRequestsEditDraft)).Post("/upload", h.upload)
	r.With(h.guard.RequireAny(workflow.CapRequestsView)).Get("/{name}", h.download)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	// multipart framing overhead on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.storage.MaxBytes()+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, ErrTooLarge)
			return
		}
		httpx.RespondError(w, fmt.Errorf("%w: multipart field \"file\" is required", httpx.ErrValidation))
		return
	}
	defer file.Close()

	stored, err := h.storage.Save(r.Context(), header.Filename, file)
	if err != nil {
		if h.logger != nil {
			h.logger.Info("upload rejected", slog.String("file", header.Filename), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stored)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, info, err := h.storage.Open(name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && h.logger != nil {
			h.logger.Error("open upload", slog.String("name", name), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	defer f.Close()
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
