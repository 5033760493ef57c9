// Package config provides configuration management for the relay.
//
// Configuration is read from a YAML file, completed with defaults,
// overridden from the environment and validated. Every problem found is
// reported at once as a ValidationError listing each FieldError.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("relay.yaml")                 // file only
//	cfg, err := config.LoadConfigWithEnvOverrides("relay.yaml") // file + env
//	cfg, err := config.LoadConfigWithEnvOverrides("")           // defaults + env
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RELAY_SECTION_FIELD:
//
//   - RELAY_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - RELAY_PROVIDERS_GEMINI_MODEL overrides providers.gemini.model
//   - RELAY_STREAM_IDLE_TIMEOUT overrides stream.idle_timeout
//   - RELAY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A value that does not parse is a validation error, not a silent fallback.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watch follows the file with fsnotify and hands every valid revision to a
// callback. The server uses it to change the log level at runtime; listen
// address and provider endpoints need a restart.
//
// # Example Configuration
//
//	proxy:
//	  listen_address: "0.0.0.0:8080"
//	providers:
//	  gemini:
//	    model: "gemini-1.5-flash"
//	  mistral:
//	    parse_failure: "fail"
//	stream:
//	  idle_timeout: "60s"
//	credentials:
//	  secret_name: "decryption-key"
//	store:
//	  enabled: true
//	  driver: "sqlite"
//	  dsn: "data/relay.db"
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
