// Package handlers provides the relay's HTTP handlers.
//
// # Stream routes
//
// StreamHandler serves POST /gemini, POST /mistral and POST /gpt. One
// handler instance exists per provider kind. For each request it:
//
//  1. Parses the provider-shaped body and its encrypted api_key
//  2. Decrypts the key with the process secret
//  3. Opens the upstream stream (no bytes are written before this succeeds)
//  4. Commits 200 with text/event-stream headers
//  5. Pulls normalized batches and writes and flushes each one in turn
//
// Failures in steps 1-3 produce a JSON error body. Failures after step 4
// abort the connection with http.ErrAbortHandler. A client that goes away
// cancels the request context, which unblocks the upstream read; the
// handler then returns without logging an error.
//
// # Health routes
//
//   - GET /health: liveness, always 200
//   - GET /ready: 200 when the secret is loaded and the store (if any) pings
//   - GET /health/providers: passive per-provider health from recent opens
//
// # Conversation routes
//
// ConversationHandler.Routes mounts the conversation store API on a chi
// router. These routes exist only when the store is enabled.
package handlers
