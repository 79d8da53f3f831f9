// Package middleware provides the session and rate limiting middleware that
// sit in front of the /rbac routes.
//
// SessionMiddleware attaches the resolved *auth.Caller to the request
// context; it never rejects a request for lacking credentials. RateLimiter
// applies a Redis fixed-window limit per caller (or per IP when anonymous)
// and fails open when Redis is unavailable.
package middleware
