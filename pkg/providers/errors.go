package providers

import "fmt"

// UpstreamError is returned when a provider stream could not be opened:
// the connection failed, timed out, or the provider answered with a non-2xx
// status. No bytes have been relayed to the caller when it occurs.
type UpstreamError struct {
	// Provider is the kind name of the upstream.
	Provider string

	// StatusCode is the HTTP status from the provider (0 if no response).
	StatusCode int

	// Message is a short description or the truncated provider error body.
	Message string

	// Timeout is true when the deadline for response headers expired.
	Timeout bool

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("provider %q timed out: %s", e.Provider, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("provider %q unreachable: %s", e.Provider, e.Message)
	}
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}
