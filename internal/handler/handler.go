// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/adpulse/adpulse/internal/auth"
	"github.com/adpulse/adpulse/internal/handler/dto"
	"github.com/adpulse/adpulse/internal/metaads"
	"github.com/adpulse/adpulse/internal/repository"
	"github.com/adpulse/adpulse/internal/scheduler"
	"github.com/adpulse/adpulse/internal/service"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// userID returns the authenticated caller or writes a 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := auth.UserIDFromContext(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return "", false
	}
	return id, true
}

// parseLimit reads ?limit=, falling back to the default when absent or out
// of range.
func parseLimit(r *http.Request) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxListLimit {
			return n
		}
	}
	return defaultListLimit
}

// handleServiceError maps service and upstream errors to HTTP responses.
// Validation messages are surfaced since they name the offending field.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var upstream *metaads.UpstreamError
	var network *metaads.NetworkError

	switch {
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusPreconditionFailed, "NOT_CONFIGURED",
			"Ads platform access token is not configured. Save it in settings first.")
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, "PLATFORM_ERROR", upstream.Message)
	case errors.As(err, &network):
		logger.Warn("ads platform unreachable", "error", err)
		writeError(w, http.StatusGatewayTimeout, "NETWORK_ERROR",
			"Could not reach the ads platform. Try again shortly.")

	case errors.Is(err, service.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "CLIENT_NOT_FOUND", "Client not found")
	case errors.Is(err, service.ErrFormatNotFound):
		writeError(w, http.StatusNotFound, "FORMAT_NOT_FOUND", "Report format not found")
	case errors.Is(err, service.ErrScheduleNotFound),
		errors.Is(err, scheduler.ErrScheduleNotFound),
		errors.Is(err, repository.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "SCHEDULE_NOT_FOUND", "Schedule not found")
	case errors.Is(err, service.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "REPORT_NOT_FOUND", "Report not found")
	case errors.Is(err, repository.ErrAPIKeyNotFound):
		writeError(w, http.StatusNotFound, "API_KEY_NOT_FOUND", "API key not found")

	case errors.Is(err, service.ErrDuplicateFormat):
		writeError(w, http.StatusConflict, "FORMAT_EXISTS", "A report format with this name already exists")
	case errors.Is(err, service.ErrClientInactive):
		writeError(w, http.StatusConflict, "CLIENT_INACTIVE", "Client is inactive")

	case errors.Is(err, service.ErrInvalidAccount):
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", err.Error())
	case errors.Is(err, service.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, "INVALID_SCOPE", err.Error())
	case errors.Is(err, service.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "INVALID_WINDOW", err.Error())
	case errors.Is(err, service.ErrInvalidWebhookURL):
		writeError(w, http.StatusBadRequest, "INVALID_WEBHOOK_URL", err.Error())
	case errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, service.ErrInvalidFormat),
		errors.Is(err, service.ErrInvalidClient),
		errors.Is(err, service.ErrInvalidSettings):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())

	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
