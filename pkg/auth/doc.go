// Package auth resolves request credentials to a Caller.
//
// Sessions are issued elsewhere and stored in Redis under the SHA256 hash of
// their token. A Resolver looks the session up and joins the user directory
// to learn the caller's current role:
//
//	sessions := auth.NewSessionStore(redisClient, "rolegate:session:")
//	resolver := auth.NewResolver(sessions, users.NewStore(db), metrics)
//	caller, err := resolver.ResolveSession(ctx, auth.ExtractToken(r))
//
// A nil caller with a nil error means "unauthenticated".
package auth
