package providers

import (
	"fmt"
	"strings"
)

// Kind identifies an upstream provider family. Each kind has its own request
// builder and a pure event extraction function; everything else about the
// stream is shared.
type Kind int

const (
	// KindGemini is Google's generateContent API (key in query string).
	KindGemini Kind = iota + 1
	// KindMistral is Mistral's chat completions API (bearer auth).
	KindMistral
	// KindGPT is OpenAI's chat completions API (bearer auth).
	KindGPT
)

// AllKinds returns every supported kind in route order.
func AllKinds() []Kind {
	return []Kind{KindGemini, KindMistral, KindGPT}
}

// String returns the route and config name of the kind.
func (k Kind) String() string {
	switch k {
	case KindGemini:
		return "gemini"
	case KindMistral:
		return "mistral"
	case KindGPT:
		return "gpt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a provider name to its Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		return KindGemini, nil
	case "mistral":
		return KindMistral, nil
	case "gpt", "openai":
		return KindGPT, nil
	default:
		return 0, fmt.Errorf("unknown provider %q", name)
	}
}

// PayloadField is the name of the inbound JSON field carrying the chat turns.
func (k Kind) PayloadField() string {
	if k == KindGemini {
		return "contents"
	}
	return "messages"
}
