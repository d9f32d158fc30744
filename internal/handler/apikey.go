package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/adpulse/adpulse/internal/auth"
	"github.com/adpulse/adpulse/internal/handler/dto"
	"github.com/adpulse/adpulse/internal/model"
)

// KeyManager stores API keys.
type KeyManager interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, userID, id string) error
}

// KeyEvicter drops cached auth for a revoked key.
type KeyEvicter interface {
	EvictAPIKey(ctx context.Context, keyID string) error
}

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	keys    KeyManager
	evicter KeyEvicter
	env     string
	logger  *slog.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler. env selects the key
// environment label (live or test).
func NewAPIKeyHandler(keys KeyManager, evicter KeyEvicter, env string, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, evicter: evicter, env: env, logger: logger}
}

// Create handles POST /api/v1/api-keys. New keys get the free tier and
// default to the reports scope.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.CreateAPIKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	for _, scope := range req.Scopes {
		if !model.IsValidScope(scope) {
			writeError(w, http.StatusBadRequest, "INVALID_SCOPE", "Invalid scope: "+scope)
			return
		}
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeReports}
	}

	gen, err := auth.GenerateAPIKey(h.env)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	key := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        uid,
		KeyHash:       gen.Hash,
		KeyPrefix:     gen.Prefix,
		Scopes:        req.Scopes,
		RateLimitTier: model.TierFree,
		Name:          req.Name,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.keys.CreateAPIKey(r.Context(), key); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("api_key_created", "key_id", key.ID, "key_prefix", key.KeyPrefix, "user_id", uid)
	writeJSON(w, http.StatusCreated, dto.CreateAPIKeyResponse{
		APIKeyResponse: dto.ToAPIKeyResponse(key),
		Key:            gen.Plaintext,
	})
}

// List handles GET /api/v1/api-keys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	keys, err := h.keys.ListAPIKeysByUserID(r.Context(), uid)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	out := make([]dto.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, dto.ToAPIKeyResponse(k))
	}
	writeJSON(w, http.StatusOK, dto.NewList(out))
}

// Revoke handles DELETE /api/v1/api-keys/{id}.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if id == auth.AuthFromContext(r.Context()).KeyID {
		writeError(w, http.StatusConflict, "SELF_REVOKE", "Cannot revoke the key used for this request")
		return
	}
	if err := h.keys.RevokeAPIKey(r.Context(), uid, id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if h.evicter != nil {
		if err := h.evicter.EvictAPIKey(r.Context(), id); err != nil {
			h.logger.Warn("auth cache eviction failed", "key_id", id, "error", err)
		}
	}
	h.logger.Info("api_key_revoked", "key_id", id, "user_id", uid)
	w.WriteHeader(http.StatusNoContent)
}
