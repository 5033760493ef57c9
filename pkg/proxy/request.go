package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (10MB).
	MaxRequestBodySize = 10 * 1024 * 1024

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// ParseStreamRequest parses and validates the body of a stream route for kind.
//
// The body is limited to MaxRequestBodySize. Violations are returned as
// *RequestError so HandleError can render them.
func ParseStreamRequest(r *http.Request, kind providers.Kind) (*types.StreamRequest, error) {
	var req types.StreamRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		return nil, err
	}

	if err := req.Validate(kind); err != nil {
		return nil, AsRequestError(err)
	}

	return &req, nil
}

// AsRequestError converts a *types.ValidationError into a missing_field
// *RequestError. Other errors are returned unchanged.
func AsRequestError(err error) error {
	var valErr *types.ValidationError
	if errors.As(err, &valErr) {
		return &RequestError{
			Message: valErr.Message,
			Code:    types.CodeMissingField,
			Param:   valErr.Field,
		}
	}
	return err
}

// DecodeJSONBody reads a size-limited JSON body into v.
func DecodeJSONBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if len(body) > MaxRequestBodySize {
		return &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize),
			Code:    types.CodeRequestTooLarge,
			Param:   "body",
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &RequestError{
			Message: "request body is not valid JSON",
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}

	return nil
}

// ExtractRequestID extracts the request ID from the X-Request-ID header.
// If the header is not present, it returns an empty string.
func ExtractRequestID(r *http.Request) string {
	return r.Header.Get(RequestIDHeader)
}

// RequestError represents a request parsing or validation error.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to an error response.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}
