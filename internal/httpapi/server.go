// Package httpapi exposes analyses over REST so clients can submit a post URL
// and poll the job until its comments are annotated.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/observability"
)

// Creation rate limit per client IP.
const (
	rateLimitRequests = 30
	rateLimitBurst    = 10
	rateLimitWindow   = time.Minute
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxBodyBytes      = 1 << 16
)

// Log field constants.
const (
	logFieldAnalysisID = "analysis_id"
	logFieldRoute      = "route"
)

const headerContentType = "Content-Type"

// Store is the persistence the API reads and writes.
type Store interface {
	CreateAnalysis(ctx context.Context, url string, platform domain.Platform) (*domain.Analysis, error)
	GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	ListComments(ctx context.Context, postID string, since *time.Time) ([]domain.Comment, error)
	CancelAnalysis(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Enqueuer schedules an analysis for the workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, analysisID string) error
}

// Server serves the analysis API.
type Server struct {
	store  Store
	queue  Enqueuer
	port   int
	logger *zerolog.Logger

	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
}

// NewServer creates the API server.
func NewServer(store Store, queue Enqueuer, port int, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Server{
		store:    store,
		queue:    queue,
		port:     port,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /analysis", s.handleCreate)
	mux.HandleFunc("GET /analysis/{id}", s.handleGet)
	mux.HandleFunc("GET /analysis/{id}/post", s.handlePost)
	mux.HandleFunc("GET /analysis/{id}/comments", s.handleComments)
	mux.HandleFunc("DELETE /analysis/{id}", s.handleCancel)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.instrument(mux)
}

// Start listens until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		//nolint:errcheck,contextcheck // best-effort shutdown on a fresh context
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("API server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server error: %w", err)
	}

	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests by matched route pattern and response code.
func (s *Server) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		mux.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}

		observability.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()

		if rec.code >= http.StatusInternalServerError {
			s.logger.Error().Str(logFieldRoute, route).Int("code", rec.code).Msg("request failed")
		}
	})
}

func (s *Server) allowRequest(ip string) bool {
	s.limitersMu.Lock()

	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(rateLimitWindow/rateLimitRequests), rateLimitBurst)
		s.limiters[ip] = limiter
	}

	s.limitersMu.Unlock()

	return limiter.Allow()
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
