// Package logging configures the process-wide slog logger.
//
// New returns a *slog.Logger and the *slog.LevelVar behind it. The server
// installs the logger with slog.SetDefault and keeps the LevelVar so a
// configuration reload can change verbosity without a restart.
//
// # Redaction
//
// With RedactSecrets enabled, a ReplaceAttr hook scrubs every string,
// error and Stringer attribute:
//
//   - Bearer tokens
//   - key= query parameters (Gemini endpoints carry the key in the URL)
//   - sk- style provider keys
//   - encrypted credentials in <hex-iv>:<hex-ciphertext> form
//
// Attributes whose key looks secret (api_key, token, authorization, ...)
// are replaced entirely.
//
// # Context
//
// ContextHandler copies request_id and provider from the context into
// every record, so handlers can log with slog.InfoContext and get
// correlation for free:
//
//	ctx = logging.WithRequestID(ctx, id)
//	slog.InfoContext(ctx, "stream completed", "events", n)
package logging
