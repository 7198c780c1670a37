package wiring

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	infraai "github.com/felixgeelhaar/crew/pkg/ai"
	domainai "github.com/felixgeelhaar/crew/pkg/domain/ai"
)

// LoadLLMService builds the configured provider behind the retrying LLM
// service. An unusable provider setting falls back to the mock provider;
// the error is still returned so callers can report it.
func LoadLLMService(cfg *config.Config, logger *zap.Logger) (*infraai.Service, error) {
	provider, err := infraai.NewProvider(cfg.ProviderConfig())
	var loadErr error
	if err != nil {
		loadErr = fmt.Errorf("LLM provider config fallback: %w", err)
		provider = &infraai.MockProvider{Model: cfg.LLM.Model}
	}
	return NewLLMService(provider, cfg, logger), loadErr
}

// NewLLMService wraps provider with the configured retry, timeout and rate
// limit.
func NewLLMService(provider domainai.Provider, cfg *config.Config, logger *zap.Logger) *infraai.Service {
	return infraai.NewService(provider, cfg.ServiceConfig(), logger)
}
