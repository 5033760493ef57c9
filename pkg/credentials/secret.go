package credentials

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// KeySize is the required secret length in bytes (AES-256).
const KeySize = 32

// Secret is the process-wide decryption key. It is immutable after
// construction and safe to share across goroutines.
type Secret struct {
	key []byte
}

// NewSecret builds a Secret from the raw configured value. The value's bytes
// are used directly as the AES key, so it must be exactly KeySize bytes long.
func NewSecret(raw string) (Secret, error) {
	if raw == "" {
		return Secret{}, &ConfigurationError{Message: "decryption secret is not set"}
	}
	if len(raw) != KeySize {
		return Secret{}, &ConfigurationError{
			Message: fmt.Sprintf("decryption secret must be %d bytes, got %d", KeySize, len(raw)),
		}
	}
	return Secret{key: []byte(raw)}, nil
}

// IsZero reports whether the secret was never initialized.
func (s Secret) IsZero() bool {
	return len(s.key) == 0
}

// String never reveals key material.
func (s Secret) String() string {
	return "[REDACTED]"
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Holder publishes the current Secret to request handlers. Store swaps it
// atomically when the secret is rotated; requests already decrypting keep
// the value they loaded.
type Holder struct {
	current atomic.Pointer[Secret]
}

// NewHolder returns a Holder containing s.
func NewHolder(s Secret) *Holder {
	h := &Holder{}
	h.Store(s)
	return h
}

// Load returns the current secret, or the zero Secret if none was stored.
func (h *Holder) Load() Secret {
	if s := h.current.Load(); s != nil {
		return *s
	}
	return Secret{}
}

// Store replaces the current secret.
func (h *Holder) Store(s Secret) {
	h.current.Store(&s)
}
