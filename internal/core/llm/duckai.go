package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/observability"
)

var (
	errChallengeShape   = errors.New("unexpected challenge result shape")
	errMissingChallenge = errors.New("response carries no x-vqd-hash-1 challenge")
)

const (
	duckAIStatusPath = "/status"
	duckAIChatPath   = "/chat"
	roleUser         = "user"
)

type duckAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type duckAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []duckAIMessage `json:"messages"`
}

// duckAIProvider relays completions through the DuckDuckGo AI chat endpoint.
// Calls are serialized: the session tokens rotate on every successful call, so
// the whole handshake-call-rotate sequence runs under one lock.
type duckAIProvider struct {
	mu      sync.Mutex
	session *duckAISession

	httpClient  *http.Client
	evaluator   ScriptEvaluator
	baseURL     string
	model       string
	userAgent   string
	feVersion   string
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
	now         func() time.Time
}

// NewDuckAIProvider creates the browser-relay adapter. The evaluator solves the
// handshake challenge; it is closed together with the provider.
func NewDuckAIProvider(cfg *config.Config, evaluator ScriptEvaluator, logger *zerolog.Logger) *duckAIProvider {
	return &duckAIProvider{
		httpClient: &http.Client{
			Timeout: requestTimeout(cfg),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		evaluator:   evaluator,
		baseURL:     strings.TrimRight(cfg.DuckAIBaseURL, "/"),
		model:       cfg.DuckAIModel,
		userAgent:   cfg.BrowserUserAgent,
		feVersion:   cfg.DuckAIFEVersion,
		logger:      logger,
		rateLimiter: newRateLimiter(cfg),
		now:         time.Now,
	}
}

// Name returns the provider identifier.
func (p *duckAIProvider) Name() ProviderName {
	return ProviderDuckAI
}

// Complete sends prompt and chunk as one user message. A missing session is
// established first. An auth rejection triggers exactly one session refresh
// and one retry; a second rejection is returned as a KindAuth error.
func (p *duckAIProvider) Complete(ctx context.Context, systemPrompt, userPayload string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", p.wrap(KindFatal, 0, fmt.Errorf(errRateLimiter, err))
	}

	if !p.session.valid() {
		if err := p.refresh(ctx, refreshReasonInitial); err != nil {
			return "", err
		}
	}

	content := singleMessagePrompt(systemPrompt, userPayload)

	text, err := p.chat(ctx, content)
	if err == nil || !IsAuth(err) {
		return text, err
	}

	p.logger.Warn().Err(err).Msg("duckai rejected session, refreshing once")

	p.session = nil

	if err := p.refresh(ctx, refreshReasonAuth); err != nil {
		return "", err
	}

	text, err = p.chat(ctx, content)
	if IsAuth(err) {
		p.session = nil

		return "", fmt.Errorf("after session refresh: %w", err)
	}

	return text, err
}

// Close releases the browser.
func (p *duckAIProvider) Close() error {
	if p.evaluator == nil {
		return nil
	}

	if err := p.evaluator.Close(); err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}

	return nil
}

// refresh performs the status handshake and replaces all session tokens.
func (p *duckAIProvider) refresh(ctx context.Context, reason string) error {
	challenge, err := p.handshake(ctx)
	if err != nil {
		return err
	}

	session, err := p.newSession(ctx, challenge)
	if err != nil {
		return err
	}

	p.session = session

	observability.LLMSessionRefreshes.WithLabelValues(string(ProviderDuckAI), reason).Inc()
	p.logger.Info().Str(logKeyReason, reason).Msg("duckai session established")

	return nil
}

func (p *duckAIProvider) handshake(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+duckAIStatusPath, nil)
	if err != nil {
		return "", p.wrap(KindFatal, 0, fmt.Errorf(errDuckAIHandshake, err))
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set(headerVQDAccept, "1")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", p.wrap(transportKind(err), 0, fmt.Errorf(errDuckAIHandshake, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.wrap(kindForStatus(resp.StatusCode), resp.StatusCode,
			fmt.Errorf(errDuckAIHandshake, statusError(resp)))
	}

	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse

	challenge := resp.Header.Get(headerVQDHash)
	if challenge == "" {
		return "", p.wrap(KindFatal, resp.StatusCode, fmt.Errorf(errDuckAIHandshake, errMissingChallenge))
	}

	return challenge, nil
}

func (p *duckAIProvider) newSession(ctx context.Context, challenge string) (*duckAISession, error) {
	hash, err := solveChallenge(ctx, p.evaluator, challenge)
	if err != nil {
		return nil, p.wrap(KindFatal, 0, fmt.Errorf(errDuckAIChallenge, err))
	}

	signals, err := buildFESignals(p.now())
	if err != nil {
		return nil, p.wrap(KindFatal, 0, err)
	}

	return &duckAISession{VQDHash: hash, FESignals: signals, FEVersion: p.feVersion}, nil
}

func (p *duckAIProvider) chat(ctx context.Context, content string) (string, error) {
	body, err := json.Marshal(duckAIChatRequest{
		Model:    p.model,
		Messages: []duckAIMessage{{Role: roleUser, Content: content}},
	})
	if err != nil {
		return "", p.wrap(KindFatal, 0, fmt.Errorf(errDuckAIChat, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+duckAIChatPath, bytes.NewReader(body))
	if err != nil {
		return "", p.wrap(KindFatal, 0, fmt.Errorf(errDuckAIChat, err))
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Referer", duckAIReferer)
	req.Header.Set("Origin", duckAIOrigin)
	req.Header.Set(headerFESignals, p.session.FESignals)
	req.Header.Set(headerFEVersion, p.session.FEVersion)
	req.Header.Set(headerVQDHash, p.session.VQDHash)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", p.wrap(transportKind(err), 0, fmt.Errorf(errDuckAIChat, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.wrap(kindForStatus(resp.StatusCode), resp.StatusCode, fmt.Errorf(errDuckAIChat, statusError(resp)))
	}

	result, streamErr := readEventStream(resp.Body, p.logger)

	// The accepted call consumed the tokens; rotate even if the stream broke.
	p.rotate(ctx, resp.Header.Get(headerVQDHash))

	if streamErr != nil {
		return "", p.wrap(transportKind(streamErr), 0, fmt.Errorf(errDuckAIChat, streamErr))
	}

	if result.Message == "" && result.ErrStatus != 0 {
		return "", p.wrap(kindForStatus(result.ErrStatus), result.ErrStatus,
			fmt.Errorf(errDuckAIChat, fmt.Errorf("stream error event %q", result.ErrType)))
	}

	if !result.Done {
		p.logger.Debug().Int(logKeyBytes, len(result.Message)).Msg("chat stream closed without terminator")
	}

	return result.Message, nil
}

// rotate replaces the session from the challenge returned with a successful
// call. On failure the session is dropped so the next call handshakes again.
func (p *duckAIProvider) rotate(ctx context.Context, challenge string) {
	if challenge == "" {
		p.session = nil
		p.logger.Warn().Msg("chat response carried no rotation challenge, session invalidated")

		return
	}

	session, err := p.newSession(ctx, challenge)
	if err != nil {
		p.session = nil
		p.logger.Warn().Err(err).Msg("session rotation failed, session invalidated")

		return
	}

	p.session = session

	observability.LLMSessionRefreshes.WithLabelValues(string(ProviderDuckAI), refreshReasonRotation).Inc()
}

func (p *duckAIProvider) wrap(kind ErrorKind, status int, err error) error {
	return &ProviderError{Provider: ProviderDuckAI, Kind: kind, StatusCode: status, Err: err}
}

// transportKind classifies errors that happened before any HTTP status arrived.
func transportKind(err error) ErrorKind {
	if kind, ok := contextKind(err); ok {
		return kind
	}

	return KindTransient
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)) //nolint:errcheck // best-effort body for the message

	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// Ensure duckAIProvider implements Provider interface.
var _ Provider = (*duckAIProvider)(nil)
