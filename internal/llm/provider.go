package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/config"
)

// Provider names accepted in MODEL_PROVIDER.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// NewModel builds the Model selected by cfg. An empty or "none" provider
// yields ErrModelDisabled.
func NewModel(cfg config.ModelConfig, logger *zap.Logger) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, ErrModelDisabled
	case ProviderAnthropic:
		return NewAnthropicModel(AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Name,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
		}, logger)
	case ProviderOpenAI:
		return NewOpenAIModel(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Name,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout(),
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// NewLazyModelFromConfig defers NewModel until the first Generate call.
func NewLazyModelFromConfig(cfg config.ModelConfig, logger *zap.Logger) *LazyModel {
	return NewLazyModel(func() (Model, error) {
		m, err := NewModel(cfg, logger)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Info("model client created", zap.String("provider", cfg.Provider))
		}
		return m, nil
	})
}

// RetryPolicyFromConfig converts the env-level retry settings.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay(),
		MaxDelay:    cfg.MaxDelay(),
		MaxJitter:   cfg.MaxJitter(),
	}
}
