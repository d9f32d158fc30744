package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adpulse/adpulse/internal/auth"
	"github.com/adpulse/adpulse/internal/cache"
	"github.com/adpulse/adpulse/internal/model"
)

// minAuthDuration pads every authentication attempt so that a cache hit,
// a miss and a failure take the same time.
const minAuthDuration = 200 * time.Millisecond

// KeyStore looks up stored API keys.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches resolved auth contexts.
// GetAuthContext returns cache.ErrCacheMiss when nothing is cached.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, a *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	Cache  AuthCache
	// MinDuration overrides minAuthDuration. Zero uses the default.
	MinDuration time.Duration
}

// Auth authenticates API requests by key and injects the caller into the
// request context. Every failure yields the same 401 body.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	floor := cfg.MinDuration
	if floor == 0 {
		floor = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer func() {
				if elapsed := time.Since(start); elapsed < floor {
					time.Sleep(floor - elapsed)
				}
			}()

			authCtx, cacheHit, reason := resolve(r, cfg)
			if authCtx == nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", getClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			cfg.Logger.Debug("authenticated",
				slog.String("key_id", authCtx.KeyID),
				slog.String("user_id", authCtx.UserID),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

// resolve returns the caller for the request's key, whether it came from
// cache, and a failure reason when it returns nil.
func resolve(r *http.Request, cfg AuthConfig) (*model.AuthContext, bool, string) {
	ctx := r.Context()

	key := extractAPIKey(r)
	if key == "" {
		return nil, false, "missing_key"
	}
	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, false, "invalid_format"
	}

	cacheKey := auth.CacheKey(key)
	cached, err := cfg.Cache.GetAuthContext(ctx, cacheKey)
	switch {
	case err == nil:
		return cached, true, ""
	case !errors.Is(err, cache.ErrCacheMiss):
		cfg.Logger.Warn("auth cache unavailable", slog.String("error", err.Error()))
	}

	candidates, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("api key lookup failed",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(ctx)),
		)
		return nil, false, "lookup_error"
	}

	matched := matchKey(key, candidates)
	if matched == nil {
		return nil, false, "invalid_key"
	}

	authCtx := &model.AuthContext{
		KeyID:         matched.ID,
		KeyPrefix:     matched.KeyPrefix,
		UserID:        matched.UserID,
		Scopes:        matched.Scopes,
		RateLimitTier: matched.RateLimitTier,
	}
	if err := cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx); err != nil {
		cfg.Logger.Warn("auth cache write failed", slog.String("error", err.Error()))
	}

	go func(id string) {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cfg.Keys.UpdateAPIKeyLastUsed(bg, id); err != nil {
			cfg.Logger.Warn("update key last used failed", slog.String("key_id", id), slog.String("error", err.Error()))
		}
	}(matched.ID)

	return authCtx, false, ""
}

// matchKey verifies key against each candidate; prefixes may collide.
func matchKey(key string, candidates []*model.APIKey) *model.APIKey {
	for _, k := range candidates {
		if k.IsRevoked() {
			continue
		}
		if ok, err := auth.VerifyKey(key, k.KeyHash); err == nil && ok {
			return k
		}
	}
	return nil
}

// extractAPIKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>".
func extractAPIKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeAuthError(w http.ResponseWriter) {
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
}
