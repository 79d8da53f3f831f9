package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/rolegate/pkg/observability"
	"github.com/platinummonkey/rolegate/pkg/users"
)

// SessionLookup resolves request credentials to a caller. A nil caller with a
// nil error means the credentials do not name a valid session.
type SessionLookup interface {
	ResolveSession(ctx context.Context, token string) (*Caller, error)
}

// SessionGetter loads sessions by token and drops the ones that no longer resolve
type SessionGetter interface {
	Lookup(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// UserGetter loads users by ID
type UserGetter interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

// Resolver joins the session store with the user directory to produce a Caller
type Resolver struct {
	sessions SessionGetter
	users    UserGetter
	metrics  *observability.Metrics
}

// NewResolver creates a session resolver
func NewResolver(sessions SessionGetter, users UserGetter, metrics *observability.Metrics) *Resolver {
	return &Resolver{sessions: sessions, users: users, metrics: metrics}
}

// ResolveSession implements SessionLookup
func (r *Resolver) ResolveSession(ctx context.Context, token string) (*Caller, error) {
	if token == "" {
		r.metrics.RecordSessionLookup("absent")
		return nil, nil
	}

	session, err := r.sessions.Lookup(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		r.metrics.RecordSessionLookup("miss")
		return nil, nil
	}
	if err != nil {
		r.metrics.RecordSessionLookup("error")
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	user, err := r.users.Get(ctx, session.UserID)
	if errors.Is(err, users.ErrNotFound) {
		r.metrics.RecordSessionLookup("orphan")
		// The user is gone, so the session can never resolve again
		if err := r.sessions.Delete(ctx, token); err != nil {
			observability.FromContext(ctx).WithError(err).Warn("Failed to drop orphaned session")
		}
		return nil, nil
	}
	if err != nil {
		r.metrics.RecordSessionLookup("error")
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	r.metrics.RecordSessionLookup("hit")
	return &Caller{UserID: user.ID, Role: user.Role}, nil
}
