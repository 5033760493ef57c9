package metrics

import (
	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ProxyMetrics tracks the streaming path.
//
// Metrics:
//   - relay_proxy_requests_total: requests by provider and outcome
//   - relay_proxy_credential_failures_total: rejected credentials by reason
//   - relay_proxy_upstream_latency_seconds: time to upstream response headers
//   - relay_proxy_stream_events_total: normalized events delivered
//   - relay_proxy_stream_bytes_total: normalized bytes delivered
//   - relay_proxy_stream_terminations_total: stream ends by reason
//   - relay_proxy_active_streams: streams currently open
type ProxyMetrics struct {
	requests           *prometheus.CounterVec
	credentialFailures *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
	streamEvents       *prometheus.CounterVec
	streamBytes        *prometheus.CounterVec
	terminations       *prometheus.CounterVec
	activeStreams      prometheus.Gauge
}

// NewProxyMetrics creates and registers proxy metrics with the provided registry.
func NewProxyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProxyMetrics {
	pm := &ProxyMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of stream requests by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		credentialFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "credential_failures_total",
				Help:      "Total number of rejected encrypted credentials by reason",
			},
			[]string{"reason"},
		),

		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_latency_seconds",
				Help:      "Time until the provider returned response headers",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"provider"},
		),

		streamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_events_total",
				Help:      "Total number of normalized events delivered to clients",
			},
			[]string{"provider"},
		),

		streamBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_bytes_total",
				Help:      "Total number of normalized bytes delivered to clients",
			},
			[]string{"provider"},
		),

		terminations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_terminations_total",
				Help:      "Total number of ended streams by reason",
			},
			[]string{"provider", "reason"},
		),

		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_streams",
				Help:      "Number of streams currently open",
			},
		),
	}

	registry.MustRegister(
		pm.requests,
		pm.credentialFailures,
		pm.upstreamLatency,
		pm.streamEvents,
		pm.streamBytes,
		pm.terminations,
		pm.activeStreams,
	)

	return pm
}
