// Package server wires the relay's HTTP surface together.
//
// It builds the chi router, mounts the stream, health, metrics and optional
// conversation routes, and owns the listener lifecycle including TLS and
// graceful shutdown.
//
// # Basic Usage
//
//	client, err := server.NewProviderClient(&cfg.Providers)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	srv := server.NewServer(cfg, server.Dependencies{
//	    Client:  client,
//	    Secret:  credentials.NewHolder(secret),
//	    Metrics: collector,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// # Routes
//
//   - POST /gemini, /mistral, /gpt - normalized provider streams
//   - GET /health - liveness probe (always 200)
//   - GET /ready - readiness probe (secret loaded, store reachable)
//   - GET /health/providers - passive per-provider health
//   - GET telemetry.metrics.path - Prometheus exposition, when enabled
//   - conversation and message routes, when a store is configured
//
// # Middleware Chain
//
// Requests pass through the following middleware (outermost first):
//  1. Recovery: turns panics into a 500, re-raising http.ErrAbortHandler
//  2. Logging: logs method, path, status and duration
//  3. RequestID: assigns X-Request-ID and puts it in the log context
//  4. CORS: adds Cross-Origin Resource Sharing headers
//
// There is no per-request timeout middleware. Streams may legitimately run
// for minutes; stalls are caught by the stream idle watchdog instead.
//
// # Graceful Shutdown
//
// Start returns after SIGINT, SIGTERM, context cancellation or a call to
// Shutdown. In-flight streams get up to proxy.shutdown_timeout to finish.
// Shutdown is idempotent.
package server
