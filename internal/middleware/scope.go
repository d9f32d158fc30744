package middleware

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/adpulse/adpulse/internal/auth"
	"github.com/adpulse/adpulse/internal/model"
)

// RequireScope rejects callers holding none of the required scopes.
// Admin satisfies every scope. Must run after Auth.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if slices.ContainsFunc(required, authCtx.HasScope) {
				next.ServeHTTP(w, r)
				return
			}
			writeJSONError(w, http.StatusForbidden, "FORBIDDEN",
				"Insufficient permissions. Required scope: "+required[0])
		})
	}
}

// RequireReports guards report generation and history.
func RequireReports() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeReports)
}

// RequireSchedules guards schedule management.
func RequireSchedules() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeSchedules)
}

// RequireFormats guards report format management.
func RequireFormats() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeFormats)
}

// RequireScheduler guards manual scheduler ticks.
func RequireScheduler() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeScheduler)
}

// RequireAdmin guards account settings and key management.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAdmin)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSONError writes the API's error body, matching the handlers'.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
