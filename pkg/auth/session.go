package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound is returned when a token has no live session
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps sessions in Redis keyed by the token hash, so raw tokens
// never reach the store
type SessionStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewSessionStore creates a Redis-backed session store
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "rolegate:session:"
	}
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *SessionStore) key(token string) string {
	return s.prefix + HashToken(token)
}

// Save stores a session for token until session.ExpiresAt
func (s *SessionStore) Save(ctx context.Context, token string, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return fmt.Errorf("session already expired")
		}
	}

	if err := s.client.Set(ctx, s.key(token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Lookup returns the live session for token
func (s *SessionStore) Lookup(ctx context.Context, token string) (*Session, error) {
	key := s.key(token)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		// Corrupt entries are dropped
		s.client.Del(ctx, key)
		return nil, ErrSessionNotFound
	}

	if session.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}

	return &session, nil
}

// Delete removes the session for token
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
