package proxy

import (
	"errors"
	"fmt"

	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/store"
)

// credentialMessage is shared by every credential failure so the response
// does not reveal which check rejected the key.
const credentialMessage = "Invalid API key"

// HandleError converts an error raised before streaming starts into a
// structured error response. Unknown errors become a generic 500 so internal
// details are never echoed to the caller.
//
// Example usage:
//
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	var malformedErr *credentials.MalformedCredentialError
	if errors.As(err, &malformedErr) {
		return types.NewInvalidRequestError(credentialMessage, "api_key", types.CodeMalformedCredential)
	}

	var decryptErr *credentials.DecryptionError
	if errors.As(err, &decryptErr) {
		return types.NewInvalidRequestError(credentialMessage, "api_key", types.CodeInvalidCredential)
	}

	var configErr *credentials.ConfigurationError
	if errors.As(err, &configErr) {
		return types.NewServerError("The relay is not configured to accept credentials.")
	}

	var upstreamErr *providers.UpstreamError
	if errors.As(err, &upstreamErr) {
		return handleUpstreamError(upstreamErr)
	}

	if errors.Is(err, store.ErrNotFound) {
		return types.NewNotFoundError("Record not found")
	}

	return types.NewServerError(
		"An internal error occurred. Please try again later.",
	)
}

// handleUpstreamError maps a failed stream open to a gateway error.
func handleUpstreamError(err *providers.UpstreamError) *types.ErrorResponse {
	if err.Timeout {
		return types.NewGatewayTimeoutError(
			fmt.Sprintf("Provider request timed out (%s)", err.Provider),
		)
	}
	if err.StatusCode > 0 {
		return types.NewBadGatewayError(
			fmt.Sprintf("Provider error (%s): status %d", err.Provider, err.StatusCode),
		)
	}
	return types.NewBadGatewayError(
		fmt.Sprintf("Provider unreachable (%s)", err.Provider),
	)
}

// CredentialReason returns the metric label for a credential failure, or ""
// if err is not one.
func CredentialReason(err error) string {
	var malformedErr *credentials.MalformedCredentialError
	if errors.As(err, &malformedErr) {
		return malformedErr.Reason
	}
	var decryptErr *credentials.DecryptionError
	if errors.As(err, &decryptErr) {
		return decryptErr.Reason
	}
	return ""
}
