package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
)

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(getClientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many requests")

		return
	}

	var req createAnalysisRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object with a url")

		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")

		return
	}

	platform, ok := domain.PlatformFromURL(url)
	if !ok {
		writeError(w, http.StatusBadRequest, apperrors.ErrInvalidURL.Error())

		return
	}

	if platform == domain.PlatformInstagram {
		writeError(w, http.StatusBadRequest, "Instagram "+apperrors.ErrPlatformUnavailable.Error())

		return
	}

	analysis, err := s.store.CreateAnalysis(r.Context(), url, platform)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create analysis")
		writeError(w, http.StatusInternalServerError, "failed to create analysis")

		return
	}

	// The row stays PENDING and is requeued when a worker starts.
	if err := s.queue.Enqueue(r.Context(), analysis.ID); err != nil {
		s.logger.Error().Err(err).Str(logFieldAnalysisID, analysis.ID).Msg("failed to enqueue analysis")
	}

	writeJSON(w, http.StatusCreated, toAnalysisResponse(analysis))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	analysis, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toAnalysisResponse(analysis))
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	analysis, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}

	post, err := s.store.GetPost(r.Context(), analysis.PostID)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(post))
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	var since *time.Time

	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := dateparse.ParseAny(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a date or timestamp")

			return
		}

		since = &t
	}

	analysis, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}

	comments, err := s.store.ListComments(r.Context(), analysis.PostID, since)
	if err != nil {
		s.writeStoreError(w, err)

		return
	}

	out := make([]commentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, toCommentResponse(&comments[i]))
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.CancelAnalysis(r.Context(), id); err != nil {
		s.writeStoreError(w, err)

		return
	}

	s.logger.Info().Str(logFieldAnalysisID, id).Msg("analysis cancelled")

	analysis, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toAnalysisResponse(analysis))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "database": err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loadAnalysis(w http.ResponseWriter, r *http.Request) (*domain.Analysis, bool) {
	analysis, err := s.store.GetAnalysis(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)

		return nil, false
	}

	return analysis, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrAnalysisNotFound), errors.Is(err, apperrors.ErrPostNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrAnalysisNotActive):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		s.logger.Error().Err(err).Msg("storage error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set(headerContentType, "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{StatusCode: code, Message: msg})
}
