package types

import (
	"fmt"
	"strings"

	"mercator-hq/relay/pkg/providers"
)

// StreamRequest is the inbound body of a provider stream route. Gemini routes
// carry Contents; Mistral and GPT routes carry Messages. APIKey is the
// encrypted credential, never a plaintext key.
type StreamRequest struct {
	// Contents is the Gemini-shaped conversation.
	Contents []providers.GeminiContent `json:"contents,omitempty"`

	// Messages is the chat-completions-shaped conversation.
	Messages []providers.ChatMessage `json:"messages,omitempty"`

	// APIKey is the encrypted provider credential (<hex-iv>:<hex-ciphertext>).
	APIKey string `json:"api_key"`
}

// Validate checks the fields required by kind.
func (r *StreamRequest) Validate(kind providers.Kind) error {
	if strings.TrimSpace(r.APIKey) == "" {
		return &ValidationError{Field: "api_key", Message: "api_key is required"}
	}

	switch kind {
	case providers.KindGemini:
		if len(r.Contents) == 0 {
			return &ValidationError{Field: "contents", Message: "contents must not be empty"}
		}
	default:
		if len(r.Messages) == 0 {
			return &ValidationError{Field: "messages", Message: "messages must not be empty"}
		}
	}

	return nil
}

// Payload converts the inbound conversation into the provider-agnostic form.
func (r *StreamRequest) Payload(kind providers.Kind) providers.ChatPayload {
	if kind == providers.KindGemini {
		return providers.PayloadFromGemini(r.Contents)
	}
	return providers.PayloadFromMessages(r.Messages)
}

// ConversationRequest is the body of POST /conversations.
type ConversationRequest struct {
	UserID  string `json:"user_id"`
	ModelID int    `json:"model_id"`
	Title   string `json:"title"`
}

// Validate checks the required fields.
func (r *ConversationRequest) Validate() error {
	if r.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user_id is required"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	return nil
}

// ConversationUpdateRequest is the body of PUT /conversation/{id}. Omitted
// fields keep their stored value.
type ConversationUpdateRequest struct {
	Title   *string `json:"title,omitempty"`
	ModelID *int    `json:"model_id,omitempty"`
}

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	Message        string `json:"message"`
}

// Validate checks the required fields.
func (r *MessageRequest) Validate() error {
	switch {
	case r.ConversationID == "":
		return &ValidationError{Field: "conversation_id", Message: "conversation_id is required"}
	case r.Sender == "":
		return &ValidationError{Field: "sender", Message: "sender is required"}
	case r.Message == "":
		return &ValidationError{Field: "message", Message: "message is required"}
	}
	return nil
}

// ValidationError represents a missing or invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}
