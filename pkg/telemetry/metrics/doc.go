// Package metrics exposes the relay's Prometheus metrics.
//
// A Collector is created once by the server from telemetry.metrics and
// passed to the stream handler and the conversation store. Every recording
// method is a no-op when metrics are disabled.
//
// # Metrics
//
//	relay_proxy_requests_total{provider,outcome}
//	relay_proxy_credential_failures_total{reason}
//	relay_proxy_upstream_latency_seconds{provider}
//	relay_proxy_stream_events_total{provider}
//	relay_proxy_stream_bytes_total{provider}
//	relay_proxy_stream_terminations_total{provider,reason}
//	relay_proxy_active_streams
//	relay_store_operations_total{op,status}
//
// Credential failure reasons are the same strings the credentials package
// uses internally (separator, hex, iv_length, block_size, padding, utf8).
// They are never returned to clients.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
