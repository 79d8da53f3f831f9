package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/rolegate/pkg/auth"
)

type stubLookup struct {
	callers map[string]*auth.Caller
	err     error
	calls   int
}

func (s *stubLookup) ResolveSession(ctx context.Context, token string) (*auth.Caller, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.callers[token], nil
}

func captureCaller(got **auth.Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetCaller(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware(t *testing.T) {
	lookup := &stubLookup{callers: map[string]*auth.Caller{
		"good": {UserID: "u1", Role: "admin"},
	}}
	m := NewSessionMiddleware(lookup)

	t.Run("valid bearer token attaches caller", func(t *testing.T) {
		var got *auth.Caller
		req := httptest.NewRequest("GET", "/rbac/roles", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()

		m.Handler(captureCaller(&got)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, &auth.Caller{UserID: "u1", Role: "admin"}, got)
	})

	t.Run("cookie token", func(t *testing.T) {
		var got *auth.Caller
		req := httptest.NewRequest("GET", "/rbac/roles", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "good"})

		m.Handler(captureCaller(&got)).ServeHTTP(httptest.NewRecorder(), req)
		assert.NotNil(t, got)
	})

	t.Run("no credentials passes through without lookup", func(t *testing.T) {
		before := lookup.calls
		var got *auth.Caller
		rr := httptest.NewRecorder()

		m.Handler(captureCaller(&got)).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, got)
		assert.Equal(t, before, lookup.calls)
	})

	t.Run("unknown token passes through without caller", func(t *testing.T) {
		var got *auth.Caller
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer stale")

		m.Handler(captureCaller(&got)).ServeHTTP(httptest.NewRecorder(), req)
		assert.Nil(t, got)
	})
}

func TestSessionMiddleware_LookupFailure(t *testing.T) {
	m := NewSessionMiddleware(&stubLookup{err: errors.New("redis down")})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer any")
	rr := httptest.NewRecorder()

	m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "redis down")
}
