package providers

import (
	"encoding/json"
	"fmt"
)

// Extract parses one SSE data payload and returns the text fragments it
// carries, in order. A syntactically invalid payload returns an error; a valid
// payload that lacks the expected fields returns no fragments.
//
//   - gemini:       candidates[0].content.parts[].text
//   - mistral, gpt: choices[0].delta.content
func Extract(kind Kind, data []byte) ([]string, error) {
	var event any
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}

	switch kind {
	case KindGemini:
		return extractGemini(event), nil
	case KindMistral, KindGPT:
		return extractChatDelta(event), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind %v", kind)
	}
}

func extractGemini(event any) []string {
	parts, _ := lookup(event, "candidates", 0, "content", "parts").([]any)
	var texts []string
	for _, part := range parts {
		if text, ok := lookup(part, "text").(string); ok {
			texts = append(texts, text)
		}
	}
	return texts
}

func extractChatDelta(event any) []string {
	if text, ok := lookup(event, "choices", 0, "delta", "content").(string); ok {
		return []string{text}
	}
	return nil
}

// lookup walks a decoded JSON value along path, where each element is an
// object key (string) or array index (int). It returns nil when any step is
// missing or of the wrong type.
func lookup(v any, path ...any) any {
	for _, step := range path {
		switch key := step.(type) {
		case string:
			obj, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v = obj[key]
		case int:
			arr, ok := v.([]any)
			if !ok || key >= len(arr) {
				return nil
			}
			v = arr[key]
		}
	}
	return v
}
