package llmprovider

import (
	"fmt"

	"github.com/brightlane/insightforge/pkg/config"
)

// New builds the configured provider, wrapped with the standard retry policy.
func New(cfg config.LLMConfig) (CompletionProvider, error) {
	var inner CompletionProvider

	switch cfg.Provider {
	case "anthropic":
		inner = NewAnthropicProvider(cfg.APIKey, cfg.BaseURL)
	case "openai":
		inner = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("llmprovider: unknown provider %q", cfg.Provider)
	}

	return NewRetrying(inner), nil
}
