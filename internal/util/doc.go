// Package util provides shared error types and HTTP helpers for
// webedge.
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - ConfigError: configuration load and validation errors
//   - ValidationError: invalid caller input with per-field messages
//   - Common sentinel errors: ErrNotFound, ErrConfigInvalid, etc.
//
// # HTTP Utilities
//
// Response writer wrapper for status code capture:
//
//	w := util.NewStatusCapturingResponseWriter(responseWriter)
//	handler.ServeHTTP(w, r)
//	statusCode := w.StatusCode
package util
