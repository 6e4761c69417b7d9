package llm

import (
	"fmt"
	"strings"

	"sceneforge/internal/config"
	apperrors "sceneforge/internal/errors"
	"sceneforge/internal/logging"
	"sceneforge/internal/ports"
)

// New builds the text-model client selected by cfg, wrapped with retry.
func New(cfg config.LLMConfig, logger logging.Logger) (ports.LLMClient, error) {
	return newForModel(cfg, cfg.Model, logger)
}

// NewVision builds the vision-model client. When no dedicated vision model
// is configured the text model serves both roles.
func NewVision(cfg config.LLMConfig, logger logging.Logger) (ports.LLMClient, error) {
	model := cfg.VisionModel
	if strings.TrimSpace(model) == "" {
		model = cfg.Model
	}
	return newForModel(cfg, model, logger)
}

func newForModel(cfg config.LLMConfig, model string, logger logging.Logger) (ports.LLMClient, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "mock":
		return NewMockClient(model), nil
	case "", "openai", "openrouter", "deepseek":
		client, err := NewOpenAIClient(Options{
			Model:   model,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout(),
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		retry := apperrors.DefaultRetryConfig()
		if cfg.MaxRetries > 0 {
			retry.MaxAttempts = cfg.MaxRetries
		}
		return NewRetryClient(client, retry, logger), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
