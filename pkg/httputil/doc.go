// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, data)
//	httputil.WriteBadRequest(w, "provider is required")
//	httputil.WriteForbidden(w, message)
//
// # Request Parsing
//
// Path parameters:
//
//	id, err := httputil.ParsePathInt64(r, "accountId")
//
// Query parameters:
//
//	ids, err := httputil.ParseQueryInt64List(r, "repositoryIds")
//	provider := httputil.ParseQueryString(r, "provider", "")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/api: Gateway HTTP handlers built on these helpers
package httputil
