package llm

import (
	"context"
	"os"
	"strings"

	"github.com/chattykathys/chattykathy/domain"
)

// Provider identifies one of the supported model backends.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// Replies are capped at this many tokens for every provider.
const maxReplyTokens = 1024

// ParseProvider maps a configured value onto the supported set. Anything
// it does not recognize falls open to Anthropic rather than erroring.
func ParseProvider(value string) Provider {
	switch Provider(strings.ToLower(strings.TrimSpace(value))) {
	case ProviderOpenAI:
		return ProviderOpenAI
	case ProviderGemini:
		return ProviderGemini
	default:
		return ProviderAnthropic
	}
}

// FromEnv constructs the provider client selected by AI_PROVIDER.
// The client is built once here and owned by the caller; nothing in this
// package keeps global state.
func FromEnv(ctx context.Context) (Provider, domain.Llm, error) {
	provider := ParseProvider(os.Getenv("AI_PROVIDER"))
	switch provider {
	case ProviderOpenAI:
		return provider, NewOpenAIClient(), nil
	case ProviderGemini:
		client, err := NewGeminiClient(ctx)
		if err != nil {
			return provider, nil, err
		}
		return provider, client, nil
	default:
		return ProviderAnthropic, NewAnthropicClient(), nil
	}
}
