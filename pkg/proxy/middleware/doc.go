// Package middleware provides HTTP middleware for cross-cutting concerns:
// request IDs, structured request logging, CORS and panic recovery.
//
// # Middleware Chain
//
// The server applies the middleware outermost first:
//
//	handler = Recovery(Logging(RequestID(CORS(router))))
//
// There is deliberately no per-request timeout: streams stay open for as
// long as the provider keeps producing, and stalls are caught by the stream
// handler's idle watchdog.
//
// # Request ID
//
// RequestIDMiddleware reuses a client-supplied X-Request-ID or generates a
// UUID v4. The ID is stored in the context (GetRequestID), echoed in the
// response headers and attached to every log line.
//
// # Streaming
//
// The logging middleware's response writer implements Flush and Unwrap, so
// handlers can flush through http.ResponseController. RecoveryMiddleware
// re-raises http.ErrAbortHandler, which is how a stream that has already
// committed its status is aborted.
package middleware
