package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "RELAY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values and validates the result. Environment variables
// are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML into a defaulted configuration without validating it.
// Unknown keys are rejected so typos surface at startup.
func Parse(data []byte) (*Config, error) {
	cfg := baseConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// variable overrides. Variables follow the naming convention
// RELAY_SECTION_FIELD (e.g., RELAY_PROXY_LISTEN_ADDRESS) and always take
// precedence over the file.
//
// An empty path skips the file and starts from defaults.
//
// The loading sequence is:
//  1. Load YAML from file (or defaults)
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefaultConfig()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Malformed values are reported as field errors instead of
// being silently ignored.
func applyEnvOverrides(cfg *Config) error {
	o := &overrider{}

	// Proxy overrides
	o.str("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	o.duration("PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	o.duration("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	o.duration("PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	o.duration("PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	o.integer("PROXY_MAX_HEADER_BYTES", &cfg.Proxy.MaxHeaderBytes)
	o.boolean("PROXY_CORS_ENABLED", &cfg.Proxy.CORS.Enabled)
	o.list("PROXY_CORS_ALLOWED_ORIGINS", &cfg.Proxy.CORS.AllowedOrigins)

	// Provider overrides
	for _, name := range ProviderNames {
		p, _ := cfg.Providers.ByName(name)
		prefix := "PROVIDERS_" + strings.ToUpper(name) + "_"
		o.str(prefix+"BASE_URL", &p.BaseURL)
		o.str(prefix+"MODEL", &p.Model)
		o.duration(prefix+"TIMEOUT", &p.Timeout)
		o.str(prefix+"PARSE_FAILURE", &p.ParseFailure)
		o.integer(prefix+"MAX_IDLE_CONNS", &p.MaxIdleConns)
	}

	// Stream overrides
	o.duration("STREAM_IDLE_TIMEOUT", &cfg.Stream.IdleTimeout)
	o.integer("STREAM_MAX_FRAME_BYTES", &cfg.Stream.MaxFrameBytes)

	// Credentials overrides
	o.str("CREDENTIALS_SECRET_NAME", &cfg.Credentials.SecretName)
	o.str("CREDENTIALS_SECRETS_DIR", &cfg.Credentials.SecretsDir)
	o.boolean("CREDENTIALS_WATCH", &cfg.Credentials.Watch)

	// Store overrides
	o.boolean("STORE_ENABLED", &cfg.Store.Enabled)
	o.str("STORE_DRIVER", &cfg.Store.Driver)
	o.str("STORE_DSN", &cfg.Store.DSN)
	o.integer("STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns)
	o.integer("STORE_RETENTION_DAYS", &cfg.Store.Retention.Days)
	o.str("STORE_RETENTION_SCHEDULE", &cfg.Store.Retention.Schedule)

	// Telemetry overrides
	o.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	o.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	o.boolean("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	o.boolean("TELEMETRY_LOGGING_REDACT_SECRETS", &cfg.Telemetry.Logging.RedactSecrets)
	o.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	o.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)

	// Security overrides
	o.boolean("SECURITY_TLS_ENABLED", &cfg.Security.TLS.Enabled)
	o.str("SECURITY_TLS_CERT_FILE", &cfg.Security.TLS.CertFile)
	o.str("SECURITY_TLS_KEY_FILE", &cfg.Security.TLS.KeyFile)

	if len(o.errs) > 0 {
		return ValidationError{Errors: o.errs}
	}
	return nil
}

// overrider reads RELAY_* variables into config fields and collects parse
// failures.
type overrider struct {
	errs []FieldError
}

func (o *overrider) lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (o *overrider) fail(key string, err error) {
	o.errs = append(o.errs, FieldError{
		Field:   EnvPrefix + key,
		Message: fmt.Sprintf("invalid value: %v", err),
	})
}

func (o *overrider) str(key string, dst *string) {
	if val, ok := o.lookup(key); ok {
		*dst = val
	}
}

func (o *overrider) list(key string, dst *[]string) {
	val, ok := o.lookup(key)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (o *overrider) duration(key string, dst *time.Duration) {
	val, ok := o.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = d
}

func (o *overrider) integer(key string, dst *int) {
	val, ok := o.lookup(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = i
}

func (o *overrider) boolean(key string, dst *bool) {
	val, ok := o.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		o.fail(key, err)
		return
	}
	*dst = b
}
