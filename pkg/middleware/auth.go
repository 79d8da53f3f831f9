package middleware

import (
	"net/http"

	"github.com/platinummonkey/rolegate/pkg/auth"
	"github.com/platinummonkey/rolegate/pkg/httputil"
	"github.com/platinummonkey/rolegate/pkg/observability"
)

// SessionMiddleware resolves the request's session and attaches the caller.
// Requests without a valid session pass through with no caller; the
// administrator gate downstream turns that into 401.
type SessionMiddleware struct {
	lookup auth.SessionLookup
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(lookup auth.SessionLookup) *SessionMiddleware {
	return &SessionMiddleware{lookup: lookup}
}

// Handler wraps an HTTP handler with session resolution
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := m.lookup.ResolveSession(r.Context(), token)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("Session lookup failed")
			httputil.WriteServiceUnavailable(w, "Session lookup unavailable")
			return
		}
		if caller == nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
	})
}

// GetCaller extracts the resolved caller from the request
func GetCaller(r *http.Request) *auth.Caller {
	return auth.CallerFromContext(r.Context())
}
