package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body["result"]
}

// ─── Rate Limiter Tests ───

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := rl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, _ := rl.Allow(ctx, "10.0.0.1")
	assert.False(t, allowed, "fourth request should be limited")

	allowed, _ = rl.Allow(ctx, "10.0.0.2")
	assert.True(t, allowed, "other clients are counted separately")
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	defer rl.Stop()
	ctx := context.Background()

	allowed, _ := rl.Allow(ctx, "k")
	assert.True(t, allowed)
	allowed, _ = rl.Allow(ctx, "k")
	assert.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, _ = rl.Allow(ctx, "k")
	assert.True(t, allowed)
}

func TestRateLimiter_SteadyTrafficBelowLimitIsNeverDenied(t *testing.T) {
	rl := NewRateLimiter(2, 100*time.Millisecond)
	defer rl.Stop()
	ctx := context.Background()

	denied := 0
	for i := 0; i < 10; i++ {
		if allowed, _ := rl.Allow(ctx, "10.0.0.1"); !allowed {
			denied++
		}
		time.Sleep(60 * time.Millisecond)
	}
	assert.Zero(t, denied, "at most two requests land in any window")
}

func TestRateLimiter_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond)
	defer rl.Stop()
	ctx := context.Background()

	start := time.Now()
	allowed, _ := rl.Allow(ctx, "k")
	require.True(t, allowed)

	for time.Since(start) < 40*time.Millisecond {
		allowed, _ = rl.Allow(ctx, "k")
		assert.False(t, allowed)
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(60*time.Millisecond - time.Since(start))
	allowed, _ = rl.Allow(ctx, "k")
	assert.True(t, allowed, "window is measured from its first request")
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Millisecond)
	rl.Stop()
	rl.Stop()

	allowed, err := rl.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_AllowsUpToLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewRedisRateLimiter(client, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := rl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, mr.TTL(keys[0]) > 0, "window key should expire")
}

func TestRedisRateLimiter_ErrorWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisRateLimiter(client, 2, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := RateLimit(rl)(okHandler)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	// Same IP, different ephemeral port
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)

	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, decodeResult(t, second), "Too many requests")
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	rr := httptest.NewRecorder()
	RateLimit(failingLimiter{})(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

// ─── Auth Tests ───

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	valid, err := auth.GenerateAccessToken("alice", time.Minute)
	require.NoError(t, err)
	expired, err := auth.GenerateAccessToken("alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewJWTAuth("other-secret").GenerateAccessToken("mallory", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantResult string
	}{
		{"valid bearer", "Bearer " + valid, "", http.StatusOK, ""},
		{"valid query token", "", valid, http.StatusOK, ""},
		{"missing", "", "", http.StatusUnauthorized, "Missing or malformed authorization"},
		{"wrong scheme", "Basic " + valid, "", http.StatusUnauthorized, "Missing or malformed authorization"},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized, "Token has expired"},
		{"wrong secret", "Bearer " + foreign, "", http.StatusUnauthorized, "Invalid token"},
		{"garbage", "Bearer not.a.jwt", "", http.StatusUnauthorized, "Invalid token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var subject string
			h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = GetSubject(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			target := "/api/chat"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodPost, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus == http.StatusOK {
				assert.Equal(t, "alice", subject)
			} else {
				assert.Equal(t, tc.wantResult, decodeResult(t, rr))
			}
		})
	}
}

// ─── Request ID Tests ───

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
}

func TestRequestID_KeepsCallerValue(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "abc-123", seen)
}
