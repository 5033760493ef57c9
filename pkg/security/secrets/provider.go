package secrets

import "context"

// SecretProvider retrieves named secrets from one backend.
type SecretProvider interface {
	// GetSecret returns the raw value of name. Values are returned byte for
	// byte; providers must not reformat them.
	GetSecret(ctx context.Context, name string) (string, error)

	// ListSecrets returns the names this provider can serve. Values are
	// never included.
	ListSecrets(ctx context.Context) ([]string, error)

	// Provider returns the backend name ("env", "file").
	Provider() string

	// Supports reports whether this provider should be asked for name.
	Supports(name string) bool
}

// RefreshableProvider can drop cached values and re-read its backend.
type RefreshableProvider interface {
	SecretProvider

	// Refresh discards anything cached so the next GetSecret re-reads.
	Refresh(ctx context.Context) error
}
