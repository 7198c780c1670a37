package ai

import (
	"fmt"
	"os"

	"github.com/felixgeelhaar/crew/pkg/domain/ai"
)

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Name     string
	Model    string
	APIKey   string
	Endpoint string
}

// apiKeyEnv lists the environment variable consulted when no key is configured.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"groq":      "GROQ_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// SupportedProviders lists the accepted provider names.
func SupportedProviders() []string {
	return []string{"mock", "openai", "groq", "gemini", "anthropic"}
}

// NewProvider builds the named provider. Providers created without a key
// stay uninitialized; the service reports that on first use.
func NewProvider(cfg ProviderConfig) (ai.Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		if env, ok := apiKeyEnv[cfg.Name]; ok {
			apiKey = os.Getenv(env)
		}
	}

	switch cfg.Name {
	case "mock", "":
		return &MockProvider{Model: cfg.Model}, nil
	case "openai":
		return NewOpenAIProvider(cfg.Model, apiKey, cfg.Endpoint), nil
	case "groq":
		p := NewGroqProvider(cfg.Model, "")
		if cfg.Endpoint != "" {
			p.baseURL = cfg.Endpoint
		}
		if apiKey != "" {
			if err := p.Initialize(apiKey); err != nil {
				return nil, err
			}
		}
		return p, nil
	case "gemini":
		return NewGeminiProvider(cfg.Model, apiKey)
	case "anthropic":
		return NewAnthropicProviderWithClient(cfg.Model, apiKey, cfg.Endpoint, nil), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Name)
	}
}
