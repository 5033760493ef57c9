package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type geminiRequest struct {
	Contents          []GeminiContent `json:"contents"`
	SystemInstruction *GeminiContent  `json:"systemInstruction,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// BuildRequest constructs the outbound streaming request for cfg.Kind.
// Gemini carries the key in the query string; the others use a bearer header.
func BuildRequest(ctx context.Context, cfg Config, payload ChatPayload, apiKey string) (*http.Request, error) {
	var (
		endpoint string
		body     any
	)
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "text/event-stream")

	base := strings.TrimRight(cfg.BaseURL, "/")

	switch cfg.Kind {
	case KindGemini:
		q := url.Values{}
		q.Set("alt", "sse")
		q.Set("key", apiKey)
		endpoint = fmt.Sprintf("%s/models/%s:streamGenerateContent?%s",
			base, url.PathEscape(cfg.Model), q.Encode())
		body = buildGeminiBody(payload)

	case KindMistral, KindGPT:
		endpoint = base + "/chat/completions"
		headers.Set("Authorization", "Bearer "+apiKey)
		body = chatRequest{
			Model:    cfg.Model,
			Messages: buildChatMessages(payload),
			Stream:   true,
		}

	default:
		return nil, fmt.Errorf("unsupported provider kind %v", cfg.Kind)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", cfg.Kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", cfg.Kind, err)
	}
	req.Header = headers

	return req, nil
}

func buildGeminiBody(payload ChatPayload) geminiRequest {
	req := geminiRequest{Contents: make([]GeminiContent, 0, len(payload))}
	for _, turn := range payload {
		if turn.Role == RoleSystem {
			if req.SystemInstruction == nil {
				req.SystemInstruction = &GeminiContent{}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, GeminiPart{Text: turn.Text})
			continue
		}
		req.Contents = append(req.Contents, GeminiContent{
			Role:  toGeminiRole(turn.Role),
			Parts: []GeminiPart{{Text: turn.Text}},
		})
	}
	return req
}

func buildChatMessages(payload ChatPayload) []ChatMessage {
	messages := make([]ChatMessage, 0, len(payload))
	for _, turn := range payload {
		messages = append(messages, ChatMessage{Role: string(turn.Role), Content: turn.Text})
	}
	return messages
}
