package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adpulse/adpulse/internal/auth"
	"github.com/adpulse/adpulse/internal/cache"
	"github.com/adpulse/adpulse/internal/model"
)

// countingLimiter allows the first n calls per key.
type countingLimiter struct {
	allow int
	seen  map[string]int
}

func (l *countingLimiter) check(key string) *cache.RateLimitResult {
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	l.seen[key]++
	ok := l.seen[key] <= l.allow
	res := &cache.RateLimitResult{Allowed: ok, ResetAt: time.Unix(1700000000, 0)}
	if ok {
		res.Remaining = int64(l.allow - l.seen[key])
	} else {
		res.RetryAfter = 2 * time.Second
	}
	return res
}

func (l *countingLimiter) CheckAPIRateLimit(_ context.Context, keyID string, _, _ int) *cache.RateLimitResult {
	return l.check("key:" + keyID)
}

func (l *countingLimiter) CheckIPRateLimit(_ context.Context, ip string, _, _ int) *cache.RateLimitResult {
	return l.check("ip:" + ip)
}

func TestRateLimitAPI(t *testing.T) {
	limiter := &countingLimiter{allow: 2}
	h := RateLimitAPI(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, APIEnabled: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	serve := func(tier string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/generate", nil)
		req = req.WithContext(auth.ContextWithAuth(req.Context(), &model.AuthContext{
			KeyID: "key-" + tier, UserID: "user-1", RateLimitTier: tier,
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		rec := serve(model.TierFree)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "30" {
			t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec := serve(model.TierFree)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Errorf("Retry-After = %q, want 2", rec.Header().Get("Retry-After"))
	}

	for i := 0; i < 5; i++ {
		if rec := serve(model.TierUnlimited); rec.Code != http.StatusOK {
			t.Fatalf("unlimited tier throttled: %d", rec.Code)
		}
	}
	if limiter.seen["key:key-"+model.TierUnlimited] != 0 {
		t.Error("unlimited tier should not consume tokens")
	}
}

func TestRateLimitIP(t *testing.T) {
	limiter := &countingLimiter{allow: 1}
	h := RateLimitIP(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, IPEnabled: true, IPRPS: 1, IPBurst: 1})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	serve := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := serve("10.0.0.1:5000"); got != http.StatusOK {
		t.Fatalf("first request: %d", got)
	}
	if got := serve("10.0.0.1:5001"); got != http.StatusTooManyRequests {
		t.Errorf("same ip, new port: %d, want 429", got)
	}
	if got := serve("10.0.0.2:5000"); got != http.StatusOK {
		t.Errorf("other ip: %d", got)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "", "10.0.0.9:80", "203.0.113.7"},
		{"real ip", "", "198.51.100.4", "10.0.0.9:80", "198.51.100.4"},
		{"remote with port", "", "", "192.0.2.1:4242", "192.0.2.1"},
		{"remote without port", "", "", "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
