// Package types defines the wire types of the relay's HTTP API.
//
// Request types:
//   - StreamRequest: body of POST /gemini, /mistral and /gpt
//   - ConversationRequest, MessageRequest: bodies of the store routes
//
// Error types:
//   - ErrorResponse: structured error body returned before any stream bytes
//   - ErrorDetail: message, type, param and machine-readable code
//
// Once a stream has started the status line is committed, so errors can no
// longer be expressed with these types; the connection is aborted instead.
package types
