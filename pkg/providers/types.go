package providers

import "time"

// Role is the speaker of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one provider-agnostic chat message.
type Turn struct {
	Role Role
	Text string
}

// ChatPayload is an ordered conversation, oldest turn first.
type ChatPayload []Turn

// GeminiContent is one entry of Gemini's contents array.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a text part of a Gemini content entry.
type GeminiPart struct {
	Text string `json:"text"`
}

// ChatMessage is one entry of the chat-completions messages array shared by
// Mistral and OpenAI.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PayloadFromGemini converts Gemini-shaped contents into a ChatPayload.
// Multiple parts in one entry are joined into a single turn.
func PayloadFromGemini(contents []GeminiContent) ChatPayload {
	payload := make(ChatPayload, 0, len(contents))
	for _, c := range contents {
		var text string
		for _, p := range c.Parts {
			text += p.Text
		}
		payload = append(payload, Turn{Role: fromGeminiRole(c.Role), Text: text})
	}
	return payload
}

// PayloadFromMessages converts chat-completions messages into a ChatPayload.
func PayloadFromMessages(messages []ChatMessage) ChatPayload {
	payload := make(ChatPayload, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, Turn{Role: Role(m.Role), Text: m.Content})
	}
	return payload
}

func fromGeminiRole(role string) Role {
	switch role {
	case "model":
		return RoleAssistant
	case "":
		return RoleUser
	default:
		return Role(role)
	}
}

func toGeminiRole(role Role) string {
	if role == RoleAssistant {
		return "model"
	}
	return string(role)
}

// Config holds the upstream settings for one provider kind.
type Config struct {
	// Kind selects the request builder and extractor.
	Kind Kind

	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// Model is the model name sent upstream.
	Model string

	// Timeout bounds connection setup and the wait for response headers.
	// It never limits how long a stream may run.
	Timeout time.Duration
}

// Default upstream endpoints and models.
const (
	DefaultGeminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel    = "gemini-1.5-flash"
	DefaultMistralBaseURL = "https://api.mistral.ai/v1"
	DefaultMistralModel   = "mistral-large-latest"
	DefaultGPTBaseURL     = "https://api.openai.com/v1"
	DefaultGPTModel       = "gpt-4o-mini"
)

// DefaultConfig returns the stock settings for kind.
func DefaultConfig(kind Kind) Config {
	cfg := Config{Kind: kind, Timeout: 30 * time.Second}
	switch kind {
	case KindGemini:
		cfg.BaseURL, cfg.Model = DefaultGeminiBaseURL, DefaultGeminiModel
	case KindMistral:
		cfg.BaseURL, cfg.Model = DefaultMistralBaseURL, DefaultMistralModel
	case KindGPT:
		cfg.BaseURL, cfg.Model = DefaultGPTBaseURL, DefaultGPTModel
	}
	return cfg
}

// Health tracks the outcome of recent upstream calls for one kind.
type Health struct {
	// IsHealthy is false after three consecutive failed opens.
	IsHealthy bool `json:"healthy"`

	// ConsecutiveFailures counts failed opens since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastError is the message of the most recent failure.
	LastError string `json:"last_error,omitempty"`

	// LastSuccess is when a stream was last opened successfully.
	LastSuccess time.Time `json:"last_success,omitempty"`

	// TotalRequests and FailedRequests count opens.
	TotalRequests  int64 `json:"total_requests"`
	FailedRequests int64 `json:"failed_requests"`
}
