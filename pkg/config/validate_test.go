package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(NewDefaultConfig()); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{
			name:      "empty listen address",
			modify:    func(c *Config) { c.Proxy.ListenAddress = "" },
			wantField: "proxy.listen_address",
		},
		{
			name:      "negative write timeout",
			modify:    func(c *Config) { c.Proxy.WriteTimeout = -1 },
			wantField: "proxy.write_timeout",
		},
		{
			name:      "relative base url",
			modify:    func(c *Config) { c.Providers.Mistral.BaseURL = "api.mistral.ai" },
			wantField: "providers.mistral.base_url",
		},
		{
			name:      "empty model",
			modify:    func(c *Config) { c.Providers.Gemini.Model = "" },
			wantField: "providers.gemini.model",
		},
		{
			name:      "unknown parse policy",
			modify:    func(c *Config) { c.Providers.GPT.ParseFailure = "skip" },
			wantField: "providers.gpt.parse_failure",
		},
		{
			name:      "zero frame limit",
			modify:    func(c *Config) { c.Stream.MaxFrameBytes = 0 },
			wantField: "stream.max_frame_bytes",
		},
		{
			name:      "watch without dir",
			modify:    func(c *Config) { c.Credentials.Watch = true },
			wantField: "credentials.watch",
		},
		{
			name: "unknown store driver",
			modify: func(c *Config) {
				c.Store.Enabled = true
				c.Store.Driver = "mysql"
			},
			wantField: "store.driver",
		},
		{
			name: "invalid retention schedule",
			modify: func(c *Config) {
				c.Store.Enabled = true
				c.Store.Retention.Days = 7
				c.Store.Retention.Schedule = "every night"
			},
			wantField: "store.retention.schedule",
		},
		{
			name: "invalid redact pattern",
			modify: func(c *Config) {
				c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "bad", Pattern: "("}}
			},
			wantField: "telemetry.logging.redact_patterns[0].pattern",
		},
		{
			name:      "metrics path without slash",
			modify:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
		{
			name:      "unsorted buckets",
			modify:    func(c *Config) { c.Telemetry.Metrics.LatencyBuckets = []float64{1, 0.5} },
			wantField: "telemetry.metrics.latency_buckets",
		},
		{
			name:      "tls without cert",
			modify:    func(c *Config) { c.Security.TLS.Enabled = true; c.Security.TLS.KeyFile = "key.pem" },
			wantField: "security.tls.cert_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)

			var valErr ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range valErr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.wantField, valErr.Errors)
			}
		})
	}
}

func TestValidate_DisabledStoreIsNotChecked(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = "mysql"

	if err := Validate(cfg); err != nil {
		t.Errorf("disabled store should not be validated: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("single error = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := multi.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("multi error = %q", got)
	}
}
