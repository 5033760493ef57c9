package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/handlers"
	"mercator-hq/relay/pkg/proxy/middleware"
	relaytls "mercator-hq/relay/pkg/security/tls"
	"mercator-hq/relay/pkg/store"
	"mercator-hq/relay/pkg/stream"
	"mercator-hq/relay/pkg/telemetry/metrics"
)

// Dependencies are the long-lived components the server routes to.
type Dependencies struct {
	// Client opens provider streams and reports their health.
	Client *providers.Client

	// Secret holds the current decryption secret.
	Secret *credentials.Holder

	// Metrics is optional. A nil collector disables instrumentation and the
	// metrics route.
	Metrics *metrics.Collector

	// Store is optional. The conversation routes are mounted only when it
	// is set.
	Store *store.Store
}

// Server is the relay's HTTP server.
type Server struct {
	config       *config.Config
	deps         Dependencies
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new relay server.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	return &Server{
		config:       cfg,
		deps:         deps,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled, a
// termination signal arrives or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	handler, err := s.setupRoutes()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	proxyCfg := s.config.Proxy
	tlsCfg := s.config.Security.TLS

	// WriteTimeout stays at the configured value, which defaults to 0:
	// a server-wide write deadline would cut long streams.
	s.httpServer = &http.Server{
		Addr:           proxyCfg.ListenAddress,
		Handler:        handler,
		ReadTimeout:    proxyCfg.ReadTimeout,
		WriteTimeout:   proxyCfg.WriteTimeout,
		IdleTimeout:    proxyCfg.IdleTimeout,
		MaxHeaderBytes: proxyCfg.MaxHeaderBytes,
	}
	s.isRunning = true
	s.mu.Unlock()

	if tlsCfg.Enabled {
		tc, err := configureTLS(ctx, &tlsCfg)
		if err != nil {
			s.setRunning(false)
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tc
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting relay server",
			"address", proxyCfg.ListenAddress,
			"tls_enabled", tlsCfg.Enabled,
		)

		var err error
		if tlsCfg.Enabled {
			// Certificates come from TLSConfig.GetCertificate.
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.setRunning(false)
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections and waits up to
// proxy.shutdown_timeout for in-flight streams. It is safe to call more than
// once; only the first call does any work.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)

		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		timeout := s.config.Proxy.ShutdownTimeout
		slog.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.setRunning(false)
		slog.Info("relay server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler without starting a listener.
func (s *Server) Handler() (http.Handler, error) {
	return s.setupRoutes()
}

func (s *Server) setRunning(v bool) {
	s.mu.Lock()
	s.isRunning = v
	s.mu.Unlock()
}

// setupRoutes builds the router. Middleware runs outermost first:
// recovery, logging, request ID, CORS.
func (s *Server) setupRoutes() (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware(s.corsConfig()))

	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler())

	var pinger handlers.Pinger
	if s.deps.Store != nil {
		pinger = s.deps.Store
	}
	r.Method(http.MethodGet, "/ready", handlers.NewReadyHandler(s.deps.Secret, pinger))
	r.Method(http.MethodGet, "/health/providers", handlers.NewProviderHealthHandler(s.deps.Client))

	for _, kind := range providers.AllKinds() {
		opts, err := s.streamOptions(kind)
		if err != nil {
			return nil, err
		}
		r.Method(http.MethodPost, "/"+kind.String(),
			handlers.NewStreamHandler(kind, s.deps.Client, s.deps.Secret, s.deps.Metrics, opts))
	}

	metricsCfg := s.config.Telemetry.Metrics
	if metricsCfg.Enabled && s.deps.Metrics != nil {
		r.Method(http.MethodGet, metricsCfg.Path, s.deps.Metrics.Handler())
	}

	if s.deps.Store != nil {
		handlers.NewConversationHandler(s.deps.Store).Routes(r)
	}

	return r, nil
}

// streamOptions resolves the per-route stream settings for kind.
func (s *Server) streamOptions(kind providers.Kind) (handlers.StreamOptions, error) {
	pc, ok := s.config.Providers.ByName(kind.String())
	if !ok {
		return handlers.StreamOptions{}, fmt.Errorf("no configuration section for provider %s", kind)
	}

	policy, err := stream.ParsePolicyFromString(pc.ParseFailure)
	if err != nil {
		return handlers.StreamOptions{}, fmt.Errorf("providers.%s.parse_failure: %w", kind, err)
	}

	return handlers.StreamOptions{
		Policy:        policy,
		MaxFrameBytes: s.config.Stream.MaxFrameBytes,
		IdleTimeout:   s.config.Stream.IdleTimeout,
	}, nil
}

func (s *Server) corsConfig() *middleware.CORSConfig {
	cors := s.config.Proxy.CORS
	return &middleware.CORSConfig{
		Enabled:          cors.Enabled,
		AllowedOrigins:   cors.AllowedOrigins,
		AllowedMethods:   cors.AllowedMethods,
		AllowedHeaders:   cors.AllowedHeaders,
		ExposedHeaders:   cors.ExposedHeaders,
		MaxAge:           cors.MaxAge,
		AllowCredentials: cors.AllowCredentials,
	}
}

// configureTLS loads the certificate pair and keeps it fresh until ctx is
// cancelled.
func configureTLS(ctx context.Context, cfg *config.TLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("TLS requires both cert_file and key_file")
	}

	reloader := relaytls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile)
	if err := reloader.Load(); err != nil {
		return nil, err
	}

	tc, err := relaytls.ServerConfig(*cfg, reloader)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := reloader.Watch(ctx); err != nil {
			slog.Error("certificate watcher stopped", "error", err)
		}
	}()
	return tc, nil
}
