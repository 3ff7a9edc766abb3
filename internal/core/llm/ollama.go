package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

// ollamaAPIKey is ignored by Ollama but required by the OpenAI client.
const ollamaAPIKey = "ollama"

// ollamaProvider talks to a local Ollama server through its OpenAI-compatible
// endpoint. It keeps no session state and never retries.
type ollamaProvider struct {
	client      *openai.Client
	model       string
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
}

// NewOllamaProvider creates the local-model adapter.
func NewOllamaProvider(cfg *config.Config, logger *zerolog.Logger) *ollamaProvider {
	clientCfg := openai.DefaultConfig(ollamaAPIKey)
	clientCfg.BaseURL = cfg.OllamaBaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: requestTimeout(cfg)}

	return &ollamaProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.OllamaModel,
		logger:      logger,
		rateLimiter: newRateLimiter(cfg),
	}
}

// Name returns the provider identifier.
func (p *ollamaProvider) Name() ProviderName {
	return ProviderOllama
}

// Complete sends the prompt as the system message and the chunk as the user message.
func (p *ollamaProvider) Complete(ctx context.Context, systemPrompt, userPayload string) (string, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", p.wrap(KindFatal, 0, fmt.Errorf(errRateLimiter, err))
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPayload},
		},
	})
	if err != nil {
		kind, status := classifyOpenAIError(err)

		return "", p.wrap(kind, status, fmt.Errorf(errOllamaCompletion, err))
	}

	if len(resp.Choices) == 0 {
		return "", p.wrap(KindFatal, 0, apperrors.ErrEmptyResponse)
	}

	content := resp.Choices[0].Message.Content

	p.logger.Debug().
		Str(logKeyModel, p.model).
		Int(logKeyBytes, len(content)).
		Msg("ollama completion received")

	return content, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (p *ollamaProvider) Close() error {
	return nil
}

func (p *ollamaProvider) wrap(kind ErrorKind, status int, err error) error {
	return &ProviderError{Provider: ProviderOllama, Kind: kind, StatusCode: status, Err: err}
}

// classifyOpenAIError maps go-openai errors. Anything without an HTTP status is
// a transport failure (connection refused, timeout) and is transient.
func classifyOpenAIError(err error) (ErrorKind, int) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.HTTPStatusCode), apiErr.HTTPStatusCode
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return kindForStatus(reqErr.HTTPStatusCode), reqErr.HTTPStatusCode
	}

	if kind, ok := contextKind(err); ok {
		return kind, 0
	}

	return KindTransient, 0
}

func newRateLimiter(cfg *config.Config) *rate.Limiter {
	rps := cfg.LLMRateLimitRPS
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, rateLimiterBurst)
	}

	return rate.NewLimiter(rate.Limit(rps), rateLimiterBurst)
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.LLMRequestTimeout <= 0 {
		return defaultRequestTimeout
	}

	return cfg.LLMRequestTimeout
}

// Ensure ollamaProvider implements Provider interface.
var _ Provider = (*ollamaProvider)(nil)
