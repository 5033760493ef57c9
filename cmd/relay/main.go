// Relay is a streaming proxy for LLM chat completions.
//
// Clients send a conversation plus an encrypted provider API key. The relay
// decrypts the key, opens a streaming call to Gemini, Mistral or OpenAI, and
// re-emits the provider's SSE stream as newline-delimited
// {"message":"..."} objects.
//
// Usage:
//
//	# Start the relay with defaults and RELAY_* environment overrides
//	relay serve
//
//	# Start with a configuration file
//	relay serve --config /etc/relay/config.yaml
//
//	# Generate a decryption secret and encrypt a provider key with it
//	relay keys generate --format env >> .env
//	relay keys encrypt --key sk-...
//
//	# Show configured upstreams
//	relay providers list
package main

import (
	"os"

	"mercator-hq/relay/pkg/cli"
)

func main() {
	os.Exit(cli.ExitCode(Execute()))
}
