package config

import "time"

// Config is the root configuration structure for the relay.
type Config struct {
	// Proxy contains HTTP server configuration including listen address,
	// timeouts, and CORS.
	Proxy ProxyConfig `yaml:"proxy"`

	// Providers contains one section per supported upstream.
	Providers ProvidersConfig `yaml:"providers"`

	// Stream contains settings shared by every normalized stream.
	Stream StreamConfig `yaml:"stream"`

	// Credentials configures how the decryption secret is resolved.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Store configures the optional conversation store.
	Store StoreConfig `yaml:"store"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains TLS settings.
	Security SecurityConfig `yaml:"security"`
}

// ProxyConfig contains configuration for the HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port for the relay to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds the whole response. Streams can run for minutes,
	// so the default is 0 (no timeout) and stalls are left to
	// stream.idle_timeout.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout between requests.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight streams
	// during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods caps the methods granted to preflights. Each answer
	// is narrowed further to the methods routed for the requested path.
	// Default: ["GET", "POST", "PUT", "DELETE"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed in CORS
	// requests.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// ProvidersConfig holds one section per upstream kind.
type ProvidersConfig struct {
	Gemini  ProviderConfig `yaml:"gemini"`
	Mistral ProviderConfig `yaml:"mistral"`
	GPT     ProviderConfig `yaml:"gpt"`
}

// ByName returns the section for a provider kind name ("gemini", "mistral"
// or "gpt").
func (p *ProvidersConfig) ByName(name string) (*ProviderConfig, bool) {
	switch name {
	case "gemini":
		return &p.Gemini, true
	case "mistral":
		return &p.Mistral, true
	case "gpt":
		return &p.GPT, true
	default:
		return nil, false
	}
}

// ProviderNames lists the provider sections in routing order.
var ProviderNames = []string{"gemini", "mistral", "gpt"}

// ProviderConfig contains configuration for a single upstream.
type ProviderConfig struct {
	// BaseURL is the API root, without a trailing slash.
	// Example: "https://api.mistral.ai/v1"
	BaseURL string `yaml:"base_url"`

	// Model is the model requested from the upstream.
	Model string `yaml:"model"`

	// Timeout bounds connecting and waiting for response headers. It does
	// not limit how long the body streams.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// ParseFailure selects how complete data lines that fail to parse are
	// handled.
	// Options: "buffer", "fail"
	// Default: "buffer"
	ParseFailure string `yaml:"parse_failure"`

	// MaxIdleConns is the idle connection pool size for this upstream host.
	// Default: 32
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// StreamConfig contains settings shared by every stream.
type StreamConfig struct {
	// IdleTimeout aborts a stream when the upstream sends nothing for this
	// long. Zero disables the watchdog.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxFrameBytes caps the bytes held back while waiting for a line to
	// complete.
	// Default: 1048576 (1MB)
	MaxFrameBytes int `yaml:"max_frame_bytes"`
}

// CredentialsConfig configures the decryption secret.
type CredentialsConfig struct {
	// SecretName is the name resolved through the secret manager. The env
	// provider maps it to DECRYPTION_KEY.
	// Default: "decryption-key"
	SecretName string `yaml:"secret_name"`

	// SecretsDir enables the file provider, which looks for a file named
	// SecretName in this directory before falling back to the environment.
	SecretsDir string `yaml:"secrets_dir"`

	// Watch reloads the file provider when files in SecretsDir change.
	// Default: false
	Watch bool `yaml:"watch"`
}

// StoreConfig configures the conversation store.
type StoreConfig struct {
	// Enabled mounts the conversation and message routes.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo), "pgx" (PostgreSQL)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// DSN is the data source name passed to the driver. For the SQLite
	// drivers it is a file path.
	// Default: "data/relay.db"
	DSN string `yaml:"dsn"`

	// MaxOpenConns bounds the connection pool. SQLite drivers always use 1.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// Retention configures message pruning.
	Retention StoreRetentionConfig `yaml:"retention"`
}

// StoreRetentionConfig configures message pruning.
type StoreRetentionConfig struct {
	// Days is how long messages are kept. 0 keeps them forever.
	// Default: 0
	Days int `yaml:"days"`

	// Schedule is a standard cron expression for the pruning job.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets scrubs credentials and provider keys from log values.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "relay"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "proxy"
	Subsystem string `yaml:"subsystem"`

	// LatencyBuckets defines histogram buckets for upstream latency (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30]
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// TLS contains TLS configuration for the HTTP server.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	// Enabled controls whether TLS is enabled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the TLS certificate file.
	// Required when Enabled is true.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the TLS private key file.
	// Required when Enabled is true.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`
}
