package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rolegate/pkg/auth"
)

func newTestLimiter(t *testing.T, limit int64) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, RateLimitConfig{RequestsPerWindow: limit, Window: time.Minute}, "test"), mr
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, mr := newTestLimiter(t, 2)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		allowed, count, err := rl.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, int64(i), count)
	}

	allowed, _, err := rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, allowed)

	ttl := mr.TTL("test:k")
	assert.True(t, ttl > 0 && ttl <= time.Minute, "window expiry set, got %v", ttl)

	mr.FastForward(time.Minute + time.Second)
	allowed, _, err = rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed, "new window after expiry")
}

func TestRateLimiter_Handler(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(caller *auth.Caller) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/rbac/roles", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if caller != nil {
			req = req.WithContext(auth.WithCaller(req.Context(), caller))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	first := send(nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := send(nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	// A signed-in caller has its own bucket
	assert.Equal(t, http.StatusOK, send(&auth.Caller{UserID: "u1", Role: "admin"}).Code)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl, mr := newTestLimiter(t, 1)
	mr.Close()

	called := false
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.True(t, called)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}
