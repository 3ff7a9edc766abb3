package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// mockProvider answers every chunk with a neutral annotation per comment.
// It is selected with ANALYZE_AI_PROVIDER=MOCK for local runs without a model.
type mockProvider struct{}

// NewMockProvider creates a new mock LLM provider.
func NewMockProvider() *mockProvider {
	return &mockProvider{}
}

// Name returns the provider identifier.
func (p *mockProvider) Name() ProviderName {
	return ProviderMock
}

type mockAnnotation struct {
	ID              string   `json:"id"`
	Language        *string  `json:"language"`
	SentimentType   string   `json:"sentiment_type"`
	SentimentScore  float64  `json:"sentiment_score"`
	ConfidenceLevel string   `json:"confidence_level"`
	Topics          []string `json:"topics"`
	Keywords        []string `json:"keywords"`
}

// Complete echoes the ids found in the payload.
func (p *mockProvider) Complete(_ context.Context, _, userPayload string) (string, error) {
	var comments []struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal([]byte(userPayload), &comments); err != nil {
		return "", &ProviderError{Provider: ProviderMock, Kind: KindFatal, Err: fmt.Errorf("decoding payload: %w", err)}
	}

	out := make([]mockAnnotation, 0, len(comments))
	for _, c := range comments {
		out = append(out, mockAnnotation{
			ID:              c.ID,
			SentimentType:   "NEUTRAL",
			ConfidenceLevel: "LOW",
			Topics:          []string{},
			Keywords:        []string{},
		})
	}

	var sb strings.Builder
	if err := json.NewEncoder(&sb).Encode(out); err != nil {
		return "", &ProviderError{Provider: ProviderMock, Kind: KindFatal, Err: err}
	}

	return sb.String(), nil
}

// Close is a no-op.
func (p *mockProvider) Close() error {
	return nil
}

// Ensure mockProvider implements Provider interface.
var _ Provider = (*mockProvider)(nil)
