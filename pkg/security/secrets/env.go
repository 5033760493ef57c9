package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider reads secrets from environment variables. A secret name maps
// to an upper-case variable with hyphens turned into underscores, so
// "decryption-key" is read from DECRYPTION_KEY (or PREFIX_DECRYPTION_KEY
// when a prefix is set).
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider with an optional prefix.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// GetSecret returns the variable's value. An unset or empty variable is
// reported as not found.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	envVar := p.EnvVar(name)

	value, ok := os.LookupEnv(envVar)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s (env var %s)", ErrSecretNotFound, name, envVar)
	}
	return value, nil
}

// ListSecrets returns the secret names for every variable carrying the
// prefix. With no prefix this is every variable in the environment.
func (p *EnvProvider) ListSecrets(_ context.Context) ([]string, error) {
	var names []string
	for _, env := range os.Environ() {
		key, _, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, p.Prefix) {
			continue
		}
		names = append(names, p.secretName(key))
	}
	return names, nil
}

// Provider returns the provider name.
func (p *EnvProvider) Provider() string {
	return "env"
}

// Supports always returns true: the environment is the last fallback.
func (p *EnvProvider) Supports(string) bool {
	return true
}

// EnvVar returns the variable name that holds the secret name.
//
// Example: "decryption-key" -> "DECRYPTION_KEY"
func (p *EnvProvider) EnvVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// secretName converts a variable name back to a secret name.
func (p *EnvProvider) secretName(envVar string) string {
	name := strings.TrimPrefix(envVar, p.Prefix)
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}
