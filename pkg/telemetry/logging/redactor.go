package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/relay/pkg/config"
)

// Redactor scrubs secrets from log attributes: provider API keys, bearer
// tokens, Gemini key= query parameters and encrypted credentials.
type Redactor struct {
	patterns []redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternKeyParam    = "key_param"
	PatternSecretKey   = "secret_key"
	PatternCredential  = "encrypted_credential"
)

// defaultPatterns run in order; earlier patterns see the raw value.
var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternBearerToken, `(?i)Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternKeyParam, `([?&]key=)[^&\s"]+`, "${1}***"},
	{PatternSecretKey, `\bsk-[a-zA-Z0-9_\-]{8,}`, "sk-***"},
	{PatternCredential, `\b[0-9a-fA-F]{32}:[0-9a-fA-F]{32,}\b`, "[credential]"},
}

// sensitiveKeys are attribute keys whose values are never logged.
var sensitiveKeys = []string{
	"api_key", "apikey", "secret", "token", "password",
	"authorization", "credential", "decryption_key",
}

// NewRedactor creates a Redactor with the built-in and custom patterns.
func NewRedactor(customPatterns []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{}

	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}

	return r, nil
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Values under a
// sensitive key are replaced outright; other strings and errors are
// pattern-scrubbed.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, "***")
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			return slog.String(a.Key, r.RedactString(v.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, r.RedactString(v.String()))
		}
	}
	return a
}

// isSensitiveKey checks if a key name indicates secret data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}
