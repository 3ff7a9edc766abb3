package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
)

type mockStore struct {
	analyses  map[string]*domain.Analysis
	posts     map[string]*domain.Post
	comments  []domain.Comment
	since     *time.Time
	createErr error
	pingErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		analyses: map[string]*domain.Analysis{},
		posts:    map[string]*domain.Post{},
	}
}

func (m *mockStore) CreateAnalysis(_ context.Context, url string, platform domain.Platform) (*domain.Analysis, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}

	m.posts["p1"] = &domain.Post{ID: "p1", URL: url, Platform: platform}
	a := &domain.Analysis{ID: "a1", PostID: "p1", Status: domain.AnalysisPending}
	m.analyses["a1"] = a

	return a, nil
}

func (m *mockStore) GetAnalysis(_ context.Context, id string) (*domain.Analysis, error) {
	a, ok := m.analyses[id]
	if !ok {
		return nil, apperrors.ErrAnalysisNotFound
	}

	return a, nil
}

func (m *mockStore) GetPost(_ context.Context, id string) (*domain.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, apperrors.ErrPostNotFound
	}

	return p, nil
}

func (m *mockStore) ListComments(_ context.Context, _ string, since *time.Time) ([]domain.Comment, error) {
	m.since = since

	return m.comments, nil
}

func (m *mockStore) CancelAnalysis(_ context.Context, id string) error {
	a, ok := m.analyses[id]
	if !ok {
		return apperrors.ErrAnalysisNotFound
	}

	if !a.Status.IsCancellable() {
		return apperrors.ErrAnalysisNotActive
	}

	a.Status = domain.AnalysisCancelled

	return nil
}

func (m *mockStore) Ping(context.Context) error {
	return m.pingErr
}

type mockQueue struct {
	ids []string
	err error
}

func (m *mockQueue) Enqueue(_ context.Context, id string) error {
	m.ids = append(m.ids, id)

	return m.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	return resp
}

func TestCreateAnalysis(t *testing.T) {
	store, q := newMockStore(), &mockQueue{}
	h := NewServer(store, q, 0, nil).Handler()

	rec := do(t, h, http.MethodPost, "/analysis", `{"url":"https://t.me/durov/42"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp analysisResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "a1", resp.ID)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, []string{"a1"}, q.ids)
	assert.Equal(t, domain.PlatformTelegram, store.posts["p1"].Platform)
}

func TestCreateAnalysis_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "request body must be a JSON object with a url"},
		{"empty url", `{"url":"  "}`, "url is required"},
		{"unknown platform", `{"url":"https://example.com/p/1"}`, apperrors.ErrInvalidURL.Error()},
		{"instagram", `{"url":"https://www.instagram.com/p/ABC123/"}`, "Instagram platform is currently unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, q := newMockStore(), &mockQueue{}
			h := NewServer(store, q, 0, nil).Handler()

			rec := do(t, h, http.MethodPost, "/analysis", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec).Message)
			assert.Empty(t, q.ids)
			assert.Empty(t, store.analyses)
		})
	}
}

func TestCreateAnalysis_EnqueueFailureStillCreates(t *testing.T) {
	store := newMockStore()
	h := NewServer(store, &mockQueue{err: errors.New("valkey down")}, 0, nil).Handler()

	rec := do(t, h, http.MethodPost, "/analysis", `{"url":"https://t.me/durov/42"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, store.analyses, "a1")
}

func TestCreateAnalysis_StoreFailure(t *testing.T) {
	store := newMockStore()
	store.createErr = errors.New("connection reset")
	h := NewServer(store, &mockQueue{}, 0, nil).Handler()

	rec := do(t, h, http.MethodPost, "/analysis", `{"url":"https://t.me/durov/42"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to create analysis", decodeError(t, rec).Message)
}

func TestCreateAnalysis_RateLimited(t *testing.T) {
	h := NewServer(newMockStore(), &mockQueue{}, 0, nil).Handler()

	var last int
	for range rateLimitBurst + 1 {
		last = do(t, h, http.MethodPost, "/analysis", `{"url":"https://t.me/durov/42"}`).Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestGetAnalysisAndPost(t *testing.T) {
	store := newMockStore()
	desc := "data collection failed: flood wait"
	store.analyses["a1"] = &domain.Analysis{ID: "a1", PostID: "p1", Status: domain.AnalysisFailed, StatusDescription: &desc}
	views := int64(120)
	store.posts["p1"] = &domain.Post{ID: "p1", URL: "https://t.me/durov/42", Platform: domain.PlatformTelegram, PostData: domain.PostData{ViewsCount: &views}}

	h := NewServer(store, &mockQueue{}, 0, nil).Handler()

	rec := do(t, h, http.MethodGet, "/analysis/a1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var a analysisResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))
	assert.Equal(t, "FAILED", a.Status)
	require.NotNil(t, a.StatusDescription)
	assert.Equal(t, desc, *a.StatusDescription)

	rec = do(t, h, http.MethodGet, "/analysis/a1/post", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var p postResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, "TELEGRAM", p.Platform)
	require.NotNil(t, p.ViewsCount)
	assert.Equal(t, int64(120), *p.ViewsCount)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/analysis/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/analysis/missing/post", "").Code)
}

func TestListComments(t *testing.T) {
	store := newMockStore()
	store.analyses["a1"] = &domain.Analysis{ID: "a1", PostID: "p1", Status: domain.AnalysisCompleted}

	st := domain.SentimentSarcastic
	score := -0.4
	store.comments = []domain.Comment{{
		ID:          "c1",
		PostID:      "p1",
		CommentData: domain.CommentData{PlatformID: "10", Content: "sure, great"},
		Annotation:  domain.Annotation{SentimentType: &st, SentimentScore: &score, Topics: []string{"service"}},
	}}

	h := NewServer(store, &mockQueue{}, 0, nil).Handler()

	rec := do(t, h, http.MethodGet, "/analysis/a1/comments?since=2024-05-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "SARCASTIC", out[0]["sentimentType"])
	assert.InDelta(t, -0.4, out[0]["sentimentScore"], 1e-9)
	assert.Nil(t, out[0]["positiveSentences"])

	require.NotNil(t, store.since)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), store.since.UTC())
}

func TestListComments_EmptyAndInvalidSince(t *testing.T) {
	store := newMockStore()
	store.analyses["a1"] = &domain.Analysis{ID: "a1", PostID: "p1", Status: domain.AnalysisPending}
	h := NewServer(store, &mockQueue{}, 0, nil).Handler()

	rec := do(t, h, http.MethodGet, "/analysis/a1/comments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Nil(t, store.since)

	rec = do(t, h, http.MethodGet, "/analysis/a1/comments?since=not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAnalysis(t *testing.T) {
	store := newMockStore()
	store.analyses["running"] = &domain.Analysis{ID: "running", Status: domain.AnalysisAnalyzingData}
	store.analyses["done"] = &domain.Analysis{ID: "done", Status: domain.AnalysisCompleted}
	h := NewServer(store, &mockQueue{}, 0, nil).Handler()

	rec := do(t, h, http.MethodDelete, "/analysis/running", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var a analysisResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))
	assert.Equal(t, "CANCELLED", a.Status)

	rec = do(t, h, http.MethodDelete, "/analysis/done", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.ErrAnalysisNotActive.Error(), decodeError(t, rec).Message)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/analysis/missing", "").Code)
}

func TestHealth(t *testing.T) {
	store := newMockStore()
	h := NewServer(store, &mockQueue{}, 0, nil).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	store.pingErr = errors.New("no connection")
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewServer(newMockStore(), &mockQueue{}, 0, nil).Handler()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPut, "/analysis/a1", "").Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.3")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}
