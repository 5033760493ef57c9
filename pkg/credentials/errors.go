package credentials

import "fmt"

// Reasons attached to credential errors. They are used as metric labels and
// log attributes; callers never see them in responses.
const (
	ReasonSeparator = "separator"
	ReasonHex       = "hex"
	ReasonIVLength  = "iv_length"
	ReasonBlockSize = "block_size"
	ReasonPadding   = "padding"
	ReasonUTF8      = "utf8"
)

// ConfigurationError indicates the decryption secret is missing or unusable.
// It is a server-side fault and should be caught at startup.
type ConfigurationError struct {
	// Message describes what is wrong with the secret.
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("credential configuration error: %s", e.Message)
}

// MalformedCredentialError indicates the credential does not have the
// <hex-iv>:<hex-ciphertext> shape.
type MalformedCredentialError struct {
	// Reason is one of ReasonSeparator, ReasonHex or ReasonIVLength.
	Reason string

	// Cause is the underlying decode error (if any).
	Cause error
}

// Error implements the error interface.
func (e *MalformedCredentialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed credential (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed credential (%s)", e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *MalformedCredentialError) Unwrap() error {
	return e.Cause
}

// DecryptionError indicates a well-formed credential that did not decrypt to
// valid UTF-8 with the configured secret. Either the credential was tampered
// with or it was encrypted under a different secret.
type DecryptionError struct {
	// Reason is one of ReasonBlockSize, ReasonPadding or ReasonUTF8.
	Reason string
}

// Error implements the error interface.
func (e *DecryptionError) Error() string {
	return fmt.Sprintf("credential decryption failed (%s)", e.Reason)
}
