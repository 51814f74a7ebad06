package llm

import (
	"fmt"

	"caretaker/pkg/config"
)

// NewClientFromConfig builds the configured provider client wrapped with
// retry middleware.
func NewClientFromConfig(cfg config.LLMConfig, secrets *config.Secrets) (Client, error) {
	base, err := newProviderClient(cfg, secrets)
	if err != nil {
		return nil, err
	}
	return NewRetryClient(base, DefaultRetryConfig), nil
}

func newProviderClient(cfg config.LLMConfig, secrets *config.Secrets) (Client, error) {
	model := cfg.Model
	if model == "" {
		model = config.DefaultModelForProvider(cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		apiKey, err := secrets.Get(config.SecretAnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		return NewAnthropicClient(apiKey, model), nil
	case config.ProviderOpenAI:
		apiKey, err := secrets.Get(config.SecretOpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		return NewOpenAIClient(apiKey, model), nil
	case config.ProviderGemini:
		apiKey, err := secrets.Get(config.SecretGeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		return NewGeminiClient(apiKey, model), nil
	case config.ProviderOllama:
		host := cfg.OllamaHost
		if host == "" {
			host = config.DefaultOllamaHost
		}
		return NewOllamaClient(host, model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}
