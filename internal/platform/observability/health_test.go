package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	logger := zerolog.Nop()
	healthy := pingFunc(func(context.Context) error { return nil })
	broken := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name     string
		checks   map[string]Pinger
		path     string
		wantCode int
		wantBody string
	}{
		{"liveness", nil, "/healthz", http.StatusOK, "OK"},
		{"ready", map[string]Pinger{"postgres": healthy, "valkey": healthy}, "/readyz", http.StatusOK, "OK"},
		{"not_ready", map[string]Pinger{"postgres": broken}, "/readyz", http.StatusServiceUnavailable, "postgres error: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(tt.checks, 0, &logger)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	logger := zerolog.Nop()
	CommentsAnnotated.Add(0)

	rec := httptest.NewRecorder()
	NewServer(nil, 0, &logger).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vibe_comments_annotated_total")
}
