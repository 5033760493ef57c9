package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:        true,
		Namespace:      "test",
		Subsystem:      "proxy",
		LatencyBuckets: []float64{0.1, 0.5, 1.0, 5.0},
	}
}

func TestNewCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	collector := NewCollector(cfg, nil)

	if collector.Registry() == nil {
		t.Fatal("expected a registry")
	}
	if cfg.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("Namespace = %q, want %q", cfg.Namespace, config.DefaultMetricsNamespace)
	}
	if len(cfg.LatencyBuckets) != len(config.DefaultLatencyBuckets) {
		t.Errorf("LatencyBuckets = %v", cfg.LatencyBuckets)
	}
}

func TestCollector_RecordRequest(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRequest("gemini", OutcomeStreamed)
	collector.RecordRequest("gemini", OutcomeStreamed)
	collector.RecordRequest("gpt", OutcomeBadCredential)

	requests := collector.proxyMetrics.requests
	if got := testutil.ToFloat64(requests.WithLabelValues("gemini", OutcomeStreamed)); got != 2 {
		t.Errorf("gemini streamed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(requests.WithLabelValues("gpt", OutcomeBadCredential)); got != 1 {
		t.Errorf("gpt bad_credential = %v, want 1", got)
	}
}

func TestCollector_RecordCredentialFailure(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	for _, reason := range []string{"padding", "padding", "hex"} {
		collector.RecordCredentialFailure(reason)
	}

	failures := collector.proxyMetrics.credentialFailures
	if got := testutil.ToFloat64(failures.WithLabelValues("padding")); got != 2 {
		t.Errorf("padding = %v, want 2", got)
	}
	if got := testutil.ToFloat64(failures.WithLabelValues("hex")); got != 1 {
		t.Errorf("hex = %v, want 1", got)
	}
}

func TestCollector_RecordUpstreamLatency(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordUpstreamLatency("mistral", 200*time.Millisecond)
	collector.RecordUpstreamLatency("mistral", 2*time.Second)

	if got := testutil.CollectAndCount(collector.proxyMetrics.upstreamLatency); got != 1 {
		t.Errorf("expected 1 histogram series, got %d", got)
	}
}

func TestCollector_StreamLifecycle(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	pm := collector.proxyMetrics

	collector.StreamStarted()
	collector.StreamStarted()
	if got := testutil.ToFloat64(pm.activeStreams); got != 2 {
		t.Fatalf("active_streams = %v, want 2", got)
	}

	collector.StreamFinished("gpt", ReasonDone, 3, 60)
	collector.StreamFinished("gpt", ReasonClientGone, 1, 20)

	if got := testutil.ToFloat64(pm.activeStreams); got != 0 {
		t.Errorf("active_streams = %v, want 0", got)
	}
	if got := testutil.ToFloat64(pm.streamEvents.WithLabelValues("gpt")); got != 4 {
		t.Errorf("stream_events_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(pm.streamBytes.WithLabelValues("gpt")); got != 80 {
		t.Errorf("stream_bytes_total = %v, want 80", got)
	}
	if got := testutil.ToFloat64(pm.terminations.WithLabelValues("gpt", ReasonClientGone)); got != 1 {
		t.Errorf("client_gone terminations = %v, want 1", got)
	}
}

func TestCollector_RecordStoreOperation(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordStoreOperation("create_message", nil)
	collector.RecordStoreOperation("create_message", errors.New("boom"))

	ops := collector.storeMetrics.operations
	if got := testutil.ToFloat64(ops.WithLabelValues("create_message", "ok")); got != 1 {
		t.Errorf("ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("create_message", "error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordRequest("gemini", OutcomeStreamed)
	collector.StreamStarted()
	collector.RecordStoreOperation("get_conversation", nil)

	if got := testutil.CollectAndCount(collector.proxyMetrics.requests); got != 0 {
		t.Errorf("disabled collector recorded %d request series", got)
	}
	if got := testutil.ToFloat64(collector.proxyMetrics.activeStreams); got != 0 {
		t.Errorf("disabled collector moved active_streams to %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordRequest("mistral", OutcomeStreamed)

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `test_proxy_requests_total{outcome="streamed",provider="mistral"} 1`) {
		t.Errorf("metric missing from exposition:\n%s", w.Body.String())
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector
	collector.RecordRequest("gemini", OutcomeStreamed)
	collector.StreamStarted()
	collector.StreamFinished("gemini", ReasonEOF, 1, 1)
	collector.RecordStoreOperation("list_messages", nil)
}
