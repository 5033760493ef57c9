package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy"
)

// readyTimeout bounds dependency checks in the readiness probe.
const readyTimeout = 2 * time.Second

// HealthHandler handles liveness probes. It always returns 200.
type HealthHandler struct{}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for liveness checks.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// Pinger checks a dependency. *store.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyHandler handles readiness probes. The relay is ready when the
// decryption secret is loaded and, if a store is configured, the store
// answers a ping.
type ReadyHandler struct {
	Secret *credentials.Holder
	Store  Pinger
}

// NewReadyHandler creates a readiness handler. store may be nil.
func NewReadyHandler(secret *credentials.Holder, store Pinger) *ReadyHandler {
	return &ReadyHandler{Secret: secret, Store: store}
}

// ServeHTTP implements http.Handler for readiness checks.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"secret": "ok"}
	ready := true

	if h.Secret == nil || h.Secret.Load().IsZero() {
		checks["secret"] = "missing"
		ready = false
	}

	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks["store"] = "ok"
		if err := h.Store.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "store ping failed", "error", err)
			checks["store"] = "unreachable"
			ready = false
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	writeJSON(r.Context(), w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().Unix(),
	})
}

// HealthReporter exposes per-provider health. *providers.Client implements it.
type HealthReporter interface {
	Health() map[string]providers.Health
}

// ProviderHealthHandler reports the passive health the client tracks for
// each provider from the outcome of recent opens.
type ProviderHealthHandler struct {
	Reporter HealthReporter
}

// NewProviderHealthHandler creates a new provider health handler.
func NewProviderHealthHandler(reporter HealthReporter) *ProviderHealthHandler {
	return &ProviderHealthHandler{Reporter: reporter}
}

// ServeHTTP implements http.Handler for detailed provider health.
func (h *ProviderHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"providers": h.Reporter.Health(),
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	if err := proxy.WriteJSONResponse(w, code, v); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}
