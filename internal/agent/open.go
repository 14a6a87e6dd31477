package agent

import (
	"context"
	"fmt"

	"github.com/cortexai/querygate/internal/config"
	"github.com/rs/zerolog/log"
)

// NewGeneratorFromConfig builds the configured generator. It returns nil
// without an error when the provider has no API key; natural-language turns
// are then refused while direct SQL keeps working.
func NewGeneratorFromConfig(ctx context.Context, cfg *config.Config) (Generator, error) {
	switch cfg.GeneratorProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Warn().Msg("ANTHROPIC_API_KEY not set - natural-language queries disabled")
			return nil, nil
		}
		model := cfg.Model("anthropic", config.DefaultAnthropicModel)
		log.Info().Str("provider", "anthropic").Str("model", model).Msg("generator ready")
		return NewAnthropicGenerator(cfg.AnthropicAPIKey, model, cfg.AnthropicBaseURL), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Warn().Msg("GEMINI_API_KEY not set - natural-language queries disabled")
			return nil, nil
		}
		model := cfg.Model("gemini", config.DefaultGeminiModel)
		g, err := NewGeminiGenerator(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, err
		}
		log.Info().Str("provider", "gemini").Str("model", model).Msg("generator ready")
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported generator %q", cfg.GeneratorProvider)
	}
}
