package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

// geminiProvider calls the Gemini API with key-based auth. No session state.
type geminiProvider struct {
	client      *genai.Client
	model       string
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
}

// NewGeminiProvider creates the cloud-model adapter.
func NewGeminiProvider(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*geminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, &apperrors.ConfigurationError{Component: "provider", Value: string(ProviderGemini), Reason: "GEMINI_API_KEY is not set"}
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &geminiProvider{
		client:      client,
		model:       cfg.GeminiModel,
		logger:      logger,
		rateLimiter: newRateLimiter(cfg),
	}, nil
}

// Name returns the provider identifier.
func (p *geminiProvider) Name() ProviderName {
	return ProviderGemini
}

// Complete sends the prompt as the system instruction and the chunk as content.
func (p *geminiProvider) Complete(ctx context.Context, systemPrompt, userPayload string) (string, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", p.wrap(KindFatal, 0, fmt.Errorf(errRateLimiter, err))
	}

	genModel := p.client.GenerativeModel(p.model)
	genModel.SystemInstruction = genai.NewUserContent(genai.Text(sanitizeUTF8(systemPrompt)))

	resp, err := genModel.GenerateContent(ctx, genai.Text(sanitizeUTF8(userPayload)))
	if err != nil {
		kind, code := classifyGeminiError(err)

		return "", p.wrap(kind, code, fmt.Errorf(errGeminiCompletion, err))
	}

	text := extractGeminiText(resp)
	if text == "" {
		return "", p.wrap(KindFatal, 0, apperrors.ErrEmptyResponse)
	}

	p.logger.Debug().
		Str(logKeyModel, p.model).
		Int(logKeyBytes, len(text)).
		Msg("gemini completion received")

	return text, nil
}

// Close closes the Gemini client.
func (p *geminiProvider) Close() error {
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("closing gemini client: %w", err)
		}
	}

	return nil
}

func (p *geminiProvider) wrap(kind ErrorKind, code int, err error) error {
	return &ProviderError{Provider: ProviderGemini, Kind: kind, StatusCode: code, Err: err}
}

// classifyGeminiError maps REST and gRPC failures onto the error taxonomy.
func classifyGeminiError(err error) (ErrorKind, int) {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return kindForStatus(gErr.Code), gErr.Code
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return KindFatal, 0
	}

	if kind, ok := contextKind(err); ok {
		return kind, 0
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return KindAuth, 0
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal, codes.Aborted:
			return KindTransient, 0
		case codes.Unknown:
			return KindTransient, 0
		default:
			return KindFatal, 0
		}
	}

	return KindTransient, 0
}

// extractGeminiText concatenates the text parts of all candidates.
func extractGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var result strings.Builder

	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					result.WriteString(string(text))
				}
			}
		}
	}

	return result.String()
}

// sanitizeUTF8 replaces invalid UTF-8 bytes; the protobuf API rejects them
// and scraped comments may contain them.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// Ensure geminiProvider implements Provider interface.
var _ Provider = (*geminiProvider)(nil)
