package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adpulse/adpulse/internal/handler/dto"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/service"
)

// FormatManager manages report formats.
type FormatManager interface {
	Create(ctx context.Context, input service.CreateFormatInput) (*model.ReportFormat, error)
	Get(ctx context.Context, userID, id string) (*model.ReportFormat, error)
	List(ctx context.Context, userID string) ([]*model.ReportFormat, error)
	Update(ctx context.Context, input service.UpdateFormatInput) (*model.ReportFormat, error)
	Delete(ctx context.Context, userID, id string) error
	SeedDefaults(ctx context.Context, userID string) ([]*model.ReportFormat, error)
}

// FormatHandler handles report format endpoints.
type FormatHandler struct {
	svc    FormatManager
	logger *slog.Logger
}

// NewFormatHandler creates a new FormatHandler.
func NewFormatHandler(svc FormatManager, logger *slog.Logger) *FormatHandler {
	return &FormatHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/formats.
func (h *FormatHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.CreateFormatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.svc.Create(r.Context(), service.CreateFormatInput{
		UserID:      uid,
		Name:        req.Name,
		Description: req.Description,
		Metrics:     req.Metrics,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("format_created", "format_id", f.ID, "metrics", len(f.Metrics))
	writeJSON(w, http.StatusCreated, f)
}

// List handles GET /api/v1/formats. The default format is first.
func (h *FormatHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	formats, err := h.svc.List(r.Context(), uid)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(formats))
}

// Get handles GET /api/v1/formats/{id}.
func (h *FormatHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	f, err := h.svc.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Update handles PATCH /api/v1/formats/{id}.
func (h *FormatHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.UpdateFormatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.svc.Update(r.Context(), service.UpdateFormatInput{
		UserID:      uid,
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Metrics:     req.Metrics,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("format_updated", "format_id", f.ID, "metrics", len(f.Metrics))
	writeJSON(w, http.StatusOK, f)
}

// Delete handles DELETE /api/v1/formats/{id}. Schedules and clients using
// the format fall back to the built-in metric list.
func (h *FormatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), uid, id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("format_deleted", "format_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SeedDefaults handles POST /api/v1/formats/defaults. It is idempotent and
// returns only the formats it created.
func (h *FormatHandler) SeedDefaults(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	created, err := h.svc.SeedDefaults(r.Context(), uid)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if len(created) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.NewList(created))
}
