// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helpers for JSON encoding/decoding, coded error responses,
// path parameter parsing, and the common middleware every route runs through.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteSuccess(w, roles)
//	httputil.WriteCreated(w, role)
//	httputil.WriteNoContent(w)
//
// Error responses carry a machine readable code plus a human message:
//
//	httputil.WriteUnauthorized(w, "Authentication required")
//	httputil.WriteForbidden(w, "Administrator role required")
//	httputil.WriteErrorResponse(w, http.StatusForbidden, "role_in_use", "Cannot delete a role that is assigned to users")
//	httputil.WriteFieldErrors(w, "Validation failed", map[string][]string{"name": {"Role name must be at least 2 characters"}})
//
// WriteInternalError takes a message, not an error, so storage details never reach the client.
//
// # Request Parsing
//
//	var req roleRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
