package auth

import (
	"context"

	"github.com/adpulse/adpulse/internal/model"
)

type contextKey struct{}

// ContextWithAuth attaches the authenticated caller to ctx.
func ContextWithAuth(ctx context.Context, a *model.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// AuthFromContext returns the authenticated caller, or nil.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	a, _ := ctx.Value(contextKey{}).(*model.AuthContext)
	return a
}

// UserIDFromContext returns the caller's user id, or "" when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if a := AuthFromContext(ctx); a != nil {
		return a.UserID
	}
	return ""
}
