package metrics

import (
	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks the conversation store.
//
// Metrics:
//   - relay_store_operations_total: store calls by operation and status
type StoreMetrics struct {
	operations *prometheus.CounterVec
}

// NewStoreMetrics creates and registers store metrics. They live under the
// "store" subsystem regardless of the configured proxy subsystem.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of conversation store operations by result",
			},
			[]string{"op", "status"},
		),
	}

	registry.MustRegister(sm.operations)

	return sm
}
