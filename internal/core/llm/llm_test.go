package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     ProviderName
	}{
		{"ollama", "OLLAMA", ProviderOllama},
		{"duckai_lowercase", "duckai", ProviderDuckAI},
		{"mock", "MOCK", ProviderMock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.AnalyzeAIProvider = tt.provider

			p, err := New(context.Background(), cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
			assert.NoError(t, p.Close())
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.AnalyzeAIProvider = "CHATGPT"

	p, err := New(context.Background(), cfg, nil)
	assert.Nil(t, p)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "CHATGPT")
}

func TestNew_ProviderNotSet(t *testing.T) {
	p, err := New(context.Background(), &config.Config{}, nil)
	assert.Nil(t, p)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "ANALYZE_AI_PROVIDER")
}

func TestNew_GeminiWithoutKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.AnalyzeAIProvider = "GEMINI"

	p, err := New(context.Background(), cfg, nil)
	assert.Nil(t, p)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()

	text, err := p.Complete(context.Background(), AnalyzeCommentsPrompt, `[{"id":"a","content":"x"},{"id":"b"}]`)
	require.NoError(t, err)
	assert.Contains(t, text, `"id":"a"`)
	assert.Contains(t, text, `"id":"b"`)
	assert.Contains(t, text, `"sentiment_type":"NEUTRAL"`)

	_, err = p.Complete(context.Background(), "", "not json")
	assert.True(t, IsFatal(err))
}

func TestSingleMessagePrompt(t *testing.T) {
	assert.Equal(t, "P\nComments:\n[1]", singleMessagePrompt("P", "[1]"))
}
