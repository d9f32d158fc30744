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

// AccountManager manages ads platform settings and clients.
type AccountManager interface {
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
	UpdateSettings(ctx context.Context, userID, accessToken, apiVersion string) (*model.Settings, error)
	CreateClient(ctx context.Context, input service.CreateClientInput) (*model.Client, error)
	ListClients(ctx context.Context, userID string) ([]*model.Client, error)
	SetClientActive(ctx context.Context, userID, id string, active bool) (*model.Client, error)
	DeleteClient(ctx context.Context, userID, id string) error
}

// AccountHandler handles settings and client endpoints.
type AccountHandler struct {
	svc    AccountManager
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc AccountManager, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger}
}

// GetSettings handles GET /api/v1/settings.
func (h *AccountHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	s, err := h.svc.GetSettings(r.Context(), uid)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToSettingsResponse(s))
}

// UpdateSettings handles PUT /api/v1/settings.
func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.UpdateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.svc.UpdateSettings(r.Context(), uid, req.AccessToken, req.APIVersion)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("settings_updated", "user_id", uid, "api_version", s.Version())
	writeJSON(w, http.StatusOK, dto.ToSettingsResponse(s))
}

// CreateClient handles POST /api/v1/clients.
func (h *AccountHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.CreateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateClient(r.Context(), service.CreateClientInput{
		UserID:         uid,
		Name:           req.Name,
		AccountID:      req.AccountID,
		ReportFormatID: req.ReportFormatID,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("client_created", "client_id", c.ID, "account_id", c.AccountID)
	writeJSON(w, http.StatusCreated, c)
}

// ListClients handles GET /api/v1/clients.
func (h *AccountHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	clients, err := h.svc.ListClients(r.Context(), uid)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(clients))
}

// UpdateClient handles PATCH /api/v1/clients/{id}. Only is_active can
// change; an inactive client's schedules stop firing.
func (h *AccountHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.UpdateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "is_active is required")
		return
	}
	c, err := h.svc.SetClientActive(r.Context(), uid, chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteClient handles DELETE /api/v1/clients/{id}.
func (h *AccountHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteClient(r.Context(), uid, id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("client_deleted", "client_id", id)
	w.WriteHeader(http.StatusNoContent)
}
