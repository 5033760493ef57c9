package metrics

import (
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Stream termination reasons.
const (
	ReasonDone        = "done"
	ReasonEOF         = "eof"
	ReasonClientGone  = "client_gone"
	ReasonIdleTimeout = "idle_timeout"
	ReasonParseError  = "parse_error"
	ReasonReadError   = "read_error"
)

// Request outcomes.
const (
	OutcomeStreamed      = "streamed"
	OutcomeBadRequest    = "bad_request"
	OutcomeBadCredential = "bad_credential"
	OutcomeUpstreamError = "upstream_error"
	OutcomeInternalError = "internal_error"
)

// Collector owns every relay metric and the registry they are registered
// on. A nil Collector, or one built from a disabled config, records
// nothing.
//
// Label values are bounded: providers are the fixed set of kinds, and
// reasons and outcomes are the constants above.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	proxyMetrics *ProxyMetrics
	storeMetrics *StoreMetrics
}

// NewCollector creates a collector with the specified configuration and
// Prometheus registry. If registry is nil, a fresh one is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "relay",
//		Subsystem: "proxy",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = append([]float64(nil), config.DefaultLatencyBuckets...)
	}

	return &Collector{
		config:       cfg,
		registry:     registry,
		proxyMetrics: NewProxyMetrics(cfg, registry),
		storeMetrics: NewStoreMetrics(cfg, registry),
	}
}

// RecordRequest counts a finished stream request by provider and outcome.
func (c *Collector) RecordRequest(provider, outcome string) {
	if !c.enabled() {
		return
	}
	c.proxyMetrics.requests.WithLabelValues(provider, outcome).Inc()
}

// RecordCredentialFailure counts a rejected credential. The reason is the
// internal classification that the client never sees.
func (c *Collector) RecordCredentialFailure(reason string) {
	if !c.enabled() {
		return
	}
	c.proxyMetrics.credentialFailures.WithLabelValues(reason).Inc()
}

// RecordUpstreamLatency observes the time until the provider sent headers.
func (c *Collector) RecordUpstreamLatency(provider string, latency time.Duration) {
	if !c.enabled() {
		return
	}
	c.proxyMetrics.upstreamLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// StreamStarted increments the active stream gauge.
func (c *Collector) StreamStarted() {
	if !c.enabled() {
		return
	}
	c.proxyMetrics.activeStreams.Inc()
}

// StreamFinished decrements the active stream gauge and records how much
// the stream delivered and why it ended.
func (c *Collector) StreamFinished(provider, reason string, events, bytes int64) {
	if !c.enabled() {
		return
	}
	c.proxyMetrics.activeStreams.Dec()
	c.proxyMetrics.streamEvents.WithLabelValues(provider).Add(float64(events))
	c.proxyMetrics.streamBytes.WithLabelValues(provider).Add(float64(bytes))
	c.proxyMetrics.terminations.WithLabelValues(provider, reason).Inc()
}

// RecordStoreOperation counts a store call by operation and result.
func (c *Collector) RecordStoreOperation(op string, err error) {
	if !c.enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storeMetrics.operations.WithLabelValues(op, status).Inc()
}

// enabled reports whether recording is on. A nil Collector records nothing.
func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
