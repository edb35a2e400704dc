// Package ai wires the configured generation provider behind
// outbound.GenerationService and instruments every call.
package ai

import (
	"context"
	"fmt"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/ai/anthropic"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/ai/gemini"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/ai/ollama"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/ai/openai"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/ports/outbound"
	"go.uber.org/zap"
)

// Provider is a generation adapter owning its client resources
type Provider interface {
	outbound.GenerationService
	Model() string
	Close() error
}

// NewProvider builds the adapter selected by ai.provider
func NewProvider(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch cfg.Provider {
	case openai.ProviderName:
		provider, err = openai.NewClient(openai.Config{
			APIKey:    cfg.OpenAIKey,
			Model:     cfg.OpenAIModel,
			BaseURL:   cfg.OpenAIBaseURL,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, logger)
	case anthropic.ProviderName:
		provider, err = anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.AnthropicKey,
			Model:     cfg.AnthropicModel,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, logger)
	case gemini.ProviderName:
		provider, err = gemini.NewClient(ctx, gemini.Config{
			APIKey:    cfg.GeminiKey,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.MaxTokens,
		}, logger)
	case ollama.ProviderName:
		provider = ollama.NewClient(ollama.Config{
			BaseURL:   cfg.OllamaURL,
			Model:     cfg.OllamaModel,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Provider, err)
	}

	logger.Info("Generation provider initialized",
		zap.String("provider", provider.Provider()),
		zap.String("model", provider.Model()),
	)
	return provider, nil
}
