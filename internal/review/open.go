package review

import (
	"context"
	"fmt"

	"github.com/cortexai/querygate/internal/config"
	"github.com/cortexai/querygate/internal/security"
	"github.com/rs/zerolog/log"
)

// NewFromConfig builds the configured reviewer. Model-backed reviewers
// implement io.Closer.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Reviewer, error) {
	var r Reviewer
	switch cfg.ReviewerProvider {
	case "static":
		r = NewStatic(security.WithDefaultKeywords(cfg.BlockedKeywords))
	case "anthropic":
		c := NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.Model("anthropic", config.DefaultAnthropicModel), cfg.AnthropicBaseURL)
		r = NewLLM("anthropic", c, cfg.ReviewTimeout.Duration)
	case "gemini":
		c, err := NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.Model("gemini", config.DefaultGeminiModel))
		if err != nil {
			return nil, err
		}
		r = NewLLM("gemini", c, cfg.ReviewTimeout.Duration)
	case "none":
		r = Noop{}
	default:
		return nil, fmt.Errorf("unsupported reviewer %q", cfg.ReviewerProvider)
	}

	log.Info().
		Str("reviewer", cfg.ReviewerProvider).
		Dur("timeout", cfg.ReviewTimeout.Duration).
		Bool("review_all", cfg.ReviewAll).
		Msg("sql reviewer ready")
	return r, nil
}
