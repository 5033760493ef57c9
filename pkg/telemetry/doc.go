// Package telemetry groups the relay's observability packages.
//
//   - logging: slog construction with secret redaction and request context
//   - metrics: Prometheus collectors for streams, upstreams, credentials and
//     the conversation store
//
// Neither package is required at runtime. A nil metrics Collector turns
// every recording call into a no-op, and handlers log through slog's default
// logger.
package telemetry
