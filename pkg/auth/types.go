package auth

import (
	"context"
	"time"

	"github.com/platinummonkey/rolegate/pkg/contextkeys"
)

// Caller is the identity behind a request: who they are and which role they hold
type Caller struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Session is a stored login session
type Session struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// WithCaller stores the resolved caller and its user ID in the context
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	ctx = contextkeys.WithCaller(ctx, caller)
	if caller != nil {
		ctx = contextkeys.WithUserID(ctx, caller.UserID)
	}
	return ctx
}

// CallerFromContext returns the caller attached by the session middleware, or nil
func CallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(contextkeys.CallerKey).(*Caller)
	return caller
}
