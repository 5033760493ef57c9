package config

import (
	"time"

	"mercator-hq/relay/pkg/providers"
)

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSMaxAge = 3600 // 1 hour

	// Provider defaults
	DefaultProviderTimeout      = 30 * time.Second
	DefaultProviderParseFailure = "buffer"
	DefaultProviderMaxIdleConns = 32

	// Stream defaults
	DefaultStreamIdleTimeout   = 60 * time.Second
	DefaultStreamMaxFrameBytes = 1 << 20

	// Credentials defaults
	DefaultSecretName = "decryption-key"

	// Store defaults
	DefaultStoreDriver            = "sqlite"
	DefaultStoreDSN               = "data/relay.db"
	DefaultStoreMaxOpenConns      = 10
	DefaultStoreRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "relay"
	DefaultMetricsSubsystem = "proxy"

	// Security defaults
	DefaultTLSMinVersion = "1.3"
)

// DefaultLatencyBuckets spans time-to-first-byte of the supported upstreams.
var DefaultLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// baseConfig returns the value YAML is decoded into. Booleans whose default
// is true are set here, since ApplyDefaults cannot tell an explicit false
// from an absent key.
func baseConfig() Config {
	var cfg Config
	cfg.Proxy.CORS.Enabled = true
	cfg.Telemetry.Logging.RedactSecrets = true
	cfg.Telemetry.Metrics.Enabled = true
	return cfg
}

// NewDefaultConfig returns a fully defaulted configuration, as used when no
// configuration file is given.
func NewDefaultConfig() *Config {
	cfg := baseConfig()
	ApplyDefaults(&cfg)
	return &cfg
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ReadTimeout == 0 {
		cfg.Proxy.ReadTimeout = DefaultReadTimeout
	}
	// WriteTimeout stays 0 unless set: it would cut long streams.
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	applyCORSDefaults(&cfg.Proxy.CORS)

	// Provider defaults
	applyProviderDefaults(&cfg.Providers.Gemini, providers.DefaultGeminiBaseURL, providers.DefaultGeminiModel)
	applyProviderDefaults(&cfg.Providers.Mistral, providers.DefaultMistralBaseURL, providers.DefaultMistralModel)
	applyProviderDefaults(&cfg.Providers.GPT, providers.DefaultGPTBaseURL, providers.DefaultGPTModel)

	// Stream defaults
	if cfg.Stream.IdleTimeout == 0 {
		cfg.Stream.IdleTimeout = DefaultStreamIdleTimeout
	}
	if cfg.Stream.MaxFrameBytes == 0 {
		cfg.Stream.MaxFrameBytes = DefaultStreamMaxFrameBytes
	}

	// Credentials defaults
	if cfg.Credentials.SecretName == "" {
		cfg.Credentials.SecretName = DefaultSecretName
	}

	// Store defaults
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = DefaultStoreDSN
	}
	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = DefaultStoreMaxOpenConns
	}
	if cfg.Store.Retention.Schedule == "" {
		cfg.Store.Retention.Schedule = DefaultStoreRetentionSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.LatencyBuckets) == 0 {
		cfg.Telemetry.Metrics.LatencyBuckets = append([]float64(nil), DefaultLatencyBuckets...)
	}

	// Security defaults
	if cfg.Security.TLS.MinVersion == "" {
		cfg.Security.TLS.MinVersion = DefaultTLSMinVersion
	}
}

// applyProviderDefaults fills one provider section.
func applyProviderDefaults(p *ProviderConfig, baseURL, model string) {
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	if p.Model == "" {
		p.Model = model
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultProviderTimeout
	}
	if p.ParseFailure == "" {
		p.ParseFailure = DefaultProviderParseFailure
	}
	if p.MaxIdleConns == 0 {
		p.MaxIdleConns = DefaultProviderMaxIdleConns
	}
}

// applyCORSDefaults applies default values to CORS configuration.
func applyCORSDefaults(cors *CORSConfig) {
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}
