package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/credentials"
)

// ErrSecretNotFound is wrapped by providers when a secret does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// Manager asks its providers in order and returns the first value found.
// Values are cached until Refresh.
type Manager struct {
	providers []SecretProvider
	cache     *Cache
}

// NewManager creates a manager over providers, tried in order.
func NewManager(providers []SecretProvider, cacheConfig CacheConfig) *Manager {
	return &Manager{
		providers: providers,
		cache:     NewCache(cacheConfig),
	}
}

// NewManagerFromConfig builds the relay's provider chain: the file provider
// when secrets_dir is set, then the environment. The returned FileProvider
// is nil when no directory is configured; callers own closing it.
func NewManagerFromConfig(cfg config.CredentialsConfig) (*Manager, *FileProvider, error) {
	var providers []SecretProvider
	var file *FileProvider

	if cfg.SecretsDir != "" {
		fp, err := NewFileProvider(cfg.SecretsDir, cfg.Watch)
		if err != nil {
			return nil, nil, err
		}
		file = fp
		providers = append(providers, fp)
	}
	providers = append(providers, NewEnvProvider(""))

	return NewManager(providers, CacheConfig{Enabled: true}), file, nil
}

// GetSecret returns name from the first provider that has it.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.Get(name); ok {
		return value, nil
	}

	var lastErr error
	for _, provider := range m.providers {
		if !provider.Supports(name) {
			continue
		}

		value, err := provider.GetSecret(ctx, name)
		if err != nil {
			lastErr = err
			slog.Debug("secret provider miss",
				"provider", provider.Provider(),
				"name", name,
				"error", err,
			)
			continue
		}

		m.cache.Set(name, value)
		slog.Debug("secret resolved", "provider", provider.Provider(), "name", name)
		return value, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", name, lastErr)
	}
	return "", fmt.Errorf("%w: %q (no provider supports it)", ErrSecretNotFound, name)
}

// Refresh reloads every refreshable provider and clears the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error
	for _, provider := range m.providers {
		refreshable, ok := provider.(RefreshableProvider)
		if !ok {
			continue
		}
		if err := refreshable.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", provider.Provider(), err))
		}
	}

	m.cache.Clear()
	return errors.Join(errs...)
}

// ListSecrets returns the union of every provider's secret names.
func (m *Manager) ListSecrets(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string

	for _, provider := range m.providers {
		list, err := provider.ListSecrets(ctx)
		if err != nil {
			slog.Warn("failed to list secrets", "provider", provider.Provider(), "error", err)
			continue
		}
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names, nil
}

// LoadDecryptionSecret resolves name and validates it as a credential key.
// Every failure is a *credentials.ConfigurationError so startup can report
// it uniformly.
func LoadDecryptionSecret(ctx context.Context, m *Manager, name string) (credentials.Secret, error) {
	raw, err := m.GetSecret(ctx, name)
	if err != nil {
		return credentials.Secret{}, &credentials.ConfigurationError{
			Message: fmt.Sprintf("cannot resolve %q: %v", name, err),
		}
	}
	return credentials.NewSecret(raw)
}
