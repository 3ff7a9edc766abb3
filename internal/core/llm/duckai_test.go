package llm

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

const (
	testUserAgent = "test-agent"
	testFEVersion = "fe-test"
	testPrompt    = "PROMPT"
	testPayload   = `[{"id":"a"}]`
)

var testChallenge = base64.StdEncoding.EncodeToString([]byte(`{client_hashes:[navigator.webdriver?"x":"y"]}`))

// stubEvaluator returns a challenge result whose client hash encodes the call number.
type stubEvaluator struct {
	mu    sync.Mutex
	calls int
	exprs []string
	err   error
}

func (s *stubEvaluator) Evaluate(_ context.Context, expr string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.exprs = append(s.exprs, expr)

	if s.err != nil {
		return nil, s.err
	}

	return []byte(fmt.Sprintf(`{"server_hashes":["s"],"client_hashes":["c%d"],"signals":{},"meta":{"v":"4"}}`, s.calls)), nil
}

func (s *stubEvaluator) Close() error { return nil }

func (s *stubEvaluator) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// duckServer fakes the status and chat endpoints. chatStatuses is consumed one
// entry per chat call; the last entry repeats.
type duckServer struct {
	*httptest.Server

	statusCalls  atomic.Int32
	chatCalls    atomic.Int32
	chatStatuses []int
	rotate       bool
	body         string

	mu          sync.Mutex
	seenHashes  []string
	lastRequest duckAIChatRequest
}

func newDuckServer(t *testing.T, chatStatuses ...int) *duckServer {
	t.Helper()

	ds := &duckServer{
		chatStatuses: chatStatuses,
		rotate:       true,
		body:         "data: {\"action\":\"success\",\"id\":\"r1\",\"message\":\"[{\\\"id\\\":\",\"created\":1}\n\ndata: {\"action\":\"success\",\"id\":\"r1\",\"message\":\"\\\"a\\\"}]\",\"created\":1}\n\ndata: [DONE]\n\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		ds.statusCalls.Add(1)
		assert.Equal(t, "1", r.Header.Get(headerVQDAccept))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerVQDHash, testChallenge)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		n := int(ds.chatCalls.Add(1))

		ds.mu.Lock()
		ds.seenHashes = append(ds.seenHashes, r.Header.Get(headerVQDHash))
		_ = json.NewDecoder(r.Body).Decode(&ds.lastRequest)
		ds.mu.Unlock()

		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, testFEVersion, r.Header.Get(headerFEVersion))
		assert.NotEmpty(t, r.Header.Get(headerFESignals))

		code := http.StatusOK
		if len(ds.chatStatuses) > 0 {
			idx := n - 1
			if idx >= len(ds.chatStatuses) {
				idx = len(ds.chatStatuses) - 1
			}

			code = ds.chatStatuses[idx]
		}

		if code != http.StatusOK {
			w.WriteHeader(code)

			return
		}

		if ds.rotate {
			w.Header().Set(headerVQDHash, testChallenge)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(ds.body))
	})

	ds.Server = httptest.NewServer(mux)
	t.Cleanup(ds.Close)

	return ds
}

func newTestDuckAI(baseURL string, ev ScriptEvaluator) *duckAIProvider {
	cfg := &config.Config{}
	cfg.DuckAIBaseURL = baseURL
	cfg.DuckAIModel = "gpt-4o-mini"
	cfg.DuckAIFEVersion = testFEVersion
	cfg.BrowserUserAgent = testUserAgent
	logger := zerolog.Nop()

	p := NewDuckAIProvider(cfg, ev, &logger)
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	return p
}

func TestDuckAIComplete_HandshakeThenChat(t *testing.T) {
	ds := newDuckServer(t)
	ev := &stubEvaluator{}
	p := newTestDuckAI(ds.URL, ev)

	text, err := p.Complete(context.Background(), testPrompt, testPayload)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, text)

	assert.Equal(t, int32(1), ds.statusCalls.Load())
	assert.Equal(t, int32(1), ds.chatCalls.Load())
	// Initial handshake plus rotation after the successful call.
	assert.Equal(t, 2, ev.count())

	ds.mu.Lock()
	req := ds.lastRequest
	ds.mu.Unlock()

	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, roleUser, req.Messages[0].Role)
	assert.Equal(t, testPrompt+"\nComments:\n"+testPayload, req.Messages[0].Content)
}

func TestDuckAIComplete_RotatesTokensBetweenCalls(t *testing.T) {
	ds := newDuckServer(t)
	p := newTestDuckAI(ds.URL, &stubEvaluator{})

	_, err := p.Complete(context.Background(), testPrompt, testPayload)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), testPrompt, testPayload)
	require.NoError(t, err)

	assert.Equal(t, int32(1), ds.statusCalls.Load(), "rotation must not need another handshake")

	ds.mu.Lock()
	defer ds.mu.Unlock()

	require.Len(t, ds.seenHashes, 2)
	assert.NotEmpty(t, ds.seenHashes[0])
	assert.NotEqual(t, ds.seenHashes[0], ds.seenHashes[1])
}

func TestDuckAIComplete_AuthFailureRefreshesOnce(t *testing.T) {
	ds := newDuckServer(t, http.StatusUnauthorized)
	ev := &stubEvaluator{}
	p := newTestDuckAI(ds.URL, ev)

	_, err := p.Complete(context.Background(), testPrompt, testPayload)
	require.Error(t, err)
	assert.True(t, IsAuth(err))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)

	assert.Equal(t, int32(2), ds.statusCalls.Load(), "initial handshake plus one refresh")
	assert.Equal(t, int32(2), ds.chatCalls.Load(), "original call plus one retry")
	assert.Equal(t, 2, ev.count())
	assert.Nil(t, p.session)
}

func TestDuckAIComplete_AuthFailureThenSuccess(t *testing.T) {
	ds := newDuckServer(t, http.StatusForbidden, http.StatusOK)
	p := newTestDuckAI(ds.URL, &stubEvaluator{})

	text, err := p.Complete(context.Background(), testPrompt, testPayload)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, text)
	assert.Equal(t, int32(2), ds.statusCalls.Load())
	assert.Equal(t, int32(2), ds.chatCalls.Load())
}

func TestDuckAIComplete_TransientNotRetried(t *testing.T) {
	ds := newDuckServer(t, http.StatusTooManyRequests)
	p := newTestDuckAI(ds.URL, &stubEvaluator{})

	_, err := p.Complete(context.Background(), testPrompt, testPayload)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(1), ds.statusCalls.Load())
	assert.Equal(t, int32(1), ds.chatCalls.Load())
}

func TestDuckAIComplete_MissingRotationInvalidatesSession(t *testing.T) {
	ds := newDuckServer(t)
	ds.rotate = false
	p := newTestDuckAI(ds.URL, &stubEvaluator{})

	text, err := p.Complete(context.Background(), testPrompt, testPayload)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, text)
	assert.Nil(t, p.session)

	_, err = p.Complete(context.Background(), testPrompt, testPayload)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ds.statusCalls.Load())
}

func TestDuckAIComplete_ChallengeFailureIsFatal(t *testing.T) {
	ds := newDuckServer(t)
	p := newTestDuckAI(ds.URL, &stubEvaluator{err: fmt.Errorf("browser crashed")})

	_, err := p.Complete(context.Background(), testPrompt, testPayload)
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(0), ds.chatCalls.Load())
}

func TestDuckAIComplete_HandshakeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestDuckAI(srv.URL, &stubEvaluator{}).Complete(context.Background(), testPrompt, testPayload)
	assert.True(t, IsTransient(err))
}

func TestSolveChallenge(t *testing.T) {
	ev := &stubEvaluator{}

	signed, err := solveChallenge(context.Background(), ev, testChallenge)
	require.NoError(t, err)

	require.Len(t, ev.exprs, 1)
	assert.Contains(t, ev.exprs[0], "new Function")
	assert.Contains(t, ev.exprs[0], "navigator.wedbriver")
	assert.NotContains(t, ev.exprs[0], "webdriver")

	raw, err := base64.StdEncoding.DecodeString(signed)
	require.NoError(t, err)

	var result struct {
		ServerHashes []string          `json:"server_hashes"`
		ClientHashes []string          `json:"client_hashes"`
		Meta         map[string]string `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))

	sum := sha256.Sum256([]byte("c1"))
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString(sum[:])}, result.ClientHashes)
	assert.Equal(t, []string{"s"}, result.ServerHashes)
	assert.Equal(t, "4", result.Meta["v"])
	assert.Equal(t, duckAIOrigin, result.Meta["origin"])
	assert.Equal(t, duckAIChallengeDuration, result.Meta["duration"])
	assert.True(t, strings.HasPrefix(result.Meta["stack"], "Error\n"))
}

func TestSolveChallenge_BadInput(t *testing.T) {
	_, err := solveChallenge(context.Background(), &stubEvaluator{}, "%%%not-base64")
	assert.Error(t, err)
}

func TestBuildFESignals(t *testing.T) {
	enc, err := buildFESignals(time.UnixMilli(42))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)

	var s feSignals
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Equal(t, int64(42), s.Start)
	assert.Len(t, s.Events, 4)
	assert.Equal(t, duckAISignalsEnd, s.End)
}
