package domain

import "time"

// AnalysisStatus is the lifecycle state of an analysis job.
type AnalysisStatus string

// Analysis lifecycle states.
const (
	AnalysisPending        AnalysisStatus = "PENDING"
	AnalysisCollectingData AnalysisStatus = "COLLECTING_DATA"
	AnalysisAnalyzingData  AnalysisStatus = "ANALYZING_DATA"
	AnalysisCompleted      AnalysisStatus = "COMPLETED"
	AnalysisFailed         AnalysisStatus = "FAILED"
	AnalysisCancelled      AnalysisStatus = "CANCELLED"
	AnalysisPaused         AnalysisStatus = "PAUSED"
)

// Analysis tracks one request to collect and annotate a post.
type Analysis struct {
	ID                string
	PostID            string
	Status            AnalysisStatus
	StatusDescription *string
	StartedAt         *time.Time
	FinishedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsInactive reports whether a running job must stop at its next checkpoint.
func (s AnalysisStatus) IsInactive() bool {
	return s == AnalysisCancelled || s == AnalysisPaused || s == AnalysisCompleted
}

// IsCancellable reports whether a user may still cancel an analysis in this state.
func (s AnalysisStatus) IsCancellable() bool {
	switch s {
	case AnalysisCompleted, AnalysisFailed, AnalysisCancelled, AnalysisPaused:
		return false
	default:
		return true
	}
}
