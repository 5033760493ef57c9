package stream

import "fmt"

// ParseError is returned under PolicyFail when a complete data line is not
// valid JSON.
type ParseError struct {
	// Provider is the kind name of the upstream.
	Provider string

	// Line is the offending payload, truncated for logging.
	Line string

	// Cause is the JSON decode error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q sent unparseable event %q: %v", e.Provider, e.Line, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// FrameTooLargeError is returned when bytes held back waiting for a line end
// or a retried frame exceed the configured limit.
type FrameTooLargeError struct {
	Size  int
	Limit int
}

// Error implements the error interface.
func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("pending frame of %d bytes exceeds limit of %d", e.Size, e.Limit)
}

// EncodingError is returned when the upstream bytes are not valid UTF-8.
type EncodingError struct {
	// Offset is the position in the upstream stream of the first bad byte.
	Offset int64
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid utf-8 in upstream stream at byte %d", e.Offset)
}

// ReadError wraps a transport failure while reading the upstream body.
type ReadError struct {
	Cause error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("upstream read failed: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ReadError) Unwrap() error {
	return e.Cause
}

// truncate shortens s for inclusion in error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
