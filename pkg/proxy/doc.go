// Package proxy holds the request and response plumbing shared by the relay's
// HTTP handlers.
//
// # Request Flow
//
//  1. ParseStreamRequest reads at most MaxRequestBodySize bytes and validates
//     the fields required by the target provider.
//  2. The handler decrypts the api_key and opens the upstream stream.
//  3. Until the upstream is open, every failure is rendered by HandleError
//     and WriteErrorResponse as a JSON ErrorResponse.
//  4. Once the upstream answers, SetStreamHeaders commits the stream headers
//     and normalized events are written as they arrive.
//
// # Error Mapping
//
//	RequestError                 400 invalid_json / missing_field / request_too_large
//	MalformedCredentialError     400 malformed_credential
//	DecryptionError              400 invalid_credential
//	ConfigurationError           500 internal_error
//	UpstreamError                502 provider_error, 504 provider_timeout
//	store.ErrNotFound            404 not_found
//
// Both credential failures share the message "Invalid API key". The precise
// reason is available through CredentialReason for logs and metrics only.
//
// Errors after the first byte has been written cannot change the status
// line; the stream handler aborts the connection instead.
package proxy
