// Package llm holds the provider abstraction used by the analysis pipeline and
// its three adapters: a local Ollama model, the Gemini API and the DuckDuckGo AI
// chat relay authorized through a headless-browser challenge.
package llm

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

// New builds the adapter selected by ANALYZE_AI_PROVIDER. Unknown names yield
// a *errors.ConfigurationError.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Provider, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	name := strings.ToUpper(strings.TrimSpace(cfg.AnalyzeAIProvider))
	providerLogger := logger.With().Str(logKeyProvider, strings.ToLower(name)).Logger()

	switch name {
	case "":
		return nil, &apperrors.ConfigurationError{Component: "AI provider", Value: "ANALYZE_AI_PROVIDER", Reason: "not set"}
	case config.ProviderOllama:
		return NewOllamaProvider(cfg, &providerLogger), nil
	case config.ProviderGemini:
		p, err := NewGeminiProvider(ctx, cfg, &providerLogger)
		if err != nil {
			return nil, err
		}

		return p, nil
	case config.ProviderDuckAI:
		return NewDuckAIProvider(cfg, NewChromeBrowser(cfg, &providerLogger), &providerLogger), nil
	case config.ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, &apperrors.ConfigurationError{Component: "AI provider", Value: cfg.AnalyzeAIProvider}
	}
}
