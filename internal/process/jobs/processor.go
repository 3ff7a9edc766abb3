// Package jobs drives an analysis through its lifecycle: it collects the
// post's data, annotates the comments and records the outcome on the analysis.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/observability"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/worker"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/queue"
	db "github.com/vibeanalyze/vibeanalyze-backend/internal/storage"
)

// Log field constants
const (
	LogFieldAnalysisID = "analysis_id"
	LogFieldPostID     = "post_id"
	LogFieldStatus     = "status"
	LogFieldDuration   = "duration"
	LogFieldCount      = "count"
)

// outcome labels for jobs that end without a terminal status write
const statusSkipped = "SKIPPED"

// Repository is the analysis and post storage the processor needs.
type Repository interface {
	GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	UpdateAnalysisStatus(ctx context.Context, id string, upd db.StatusUpdate) error
	ClaimAnalysis(ctx context.Context, id string, startedAt time.Time) (bool, error)
	ListAnalysesByStatus(ctx context.Context, status domain.AnalysisStatus) ([]domain.Analysis, error)
}

// Collector fetches and stores a post's platform data.
type Collector interface {
	Collect(ctx context.Context, post *domain.Post) error
}

// Analyzer annotates a post's unprocessed comments.
type Analyzer interface {
	Analyze(ctx context.Context, postID string) error
}

// JobQueue is the queue the worker consumes.
type JobQueue interface {
	Enqueue(ctx context.Context, analysisID string) error
	Dequeue(ctx context.Context) (*queue.Job, error)
}

// Processor runs analysis jobs.
type Processor struct {
	repo      Repository
	collector Collector
	analyzer  Analyzer
	queue     JobQueue
	logger    *zerolog.Logger
	now       func() time.Time
}

// New creates a Processor. queue may be nil when only Run is used.
func New(repo Repository, collector Collector, analyzer Analyzer, q JobQueue, logger *zerolog.Logger) *Processor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Processor{
		repo:      repo,
		collector: collector,
		analyzer:  analyzer,
		queue:     q,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes the analysis whatever its current status, unless it is
// inactive. Used by the analyze command to rerun failed analyses.
func (p *Processor) Run(ctx context.Context, analysisID string) error {
	return p.run(ctx, analysisID, false)
}

// HandleNext waits for one job and processes it. Job failures are recorded
// on the analysis and do not stop the worker; only queue errors are returned.
func (p *Processor) HandleNext(ctx context.Context) error {
	job, err := p.queue.Dequeue(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidJob) {
			p.logger.Error().Err(err).Msg("dropping invalid job")

			return nil
		}

		return err
	}

	if job == nil {
		return nil
	}

	defer worker.RecoverPanic(p.logger, "analysis job "+job.AnalysisID)

	if err := p.run(ctx, job.AnalysisID, true); err != nil {
		p.logger.Error().Err(err).Str(LogFieldAnalysisID, job.AnalysisID).Msg("analysis job failed")
	}

	return nil
}

// RequeuePending enqueues every analysis still waiting in PENDING, such as
// jobs lost when the queue was flushed.
func (p *Processor) RequeuePending(ctx context.Context) (int, error) {
	pending, err := p.repo.ListAnalysesByStatus(ctx, domain.AnalysisPending)
	if err != nil {
		return 0, fmt.Errorf("list pending analyses: %w", err)
	}

	for i, a := range pending {
		if err := p.queue.Enqueue(ctx, a.ID); err != nil {
			return i, fmt.Errorf("requeue analysis %s: %w", a.ID, err)
		}
	}

	if len(pending) > 0 {
		p.logger.Info().Int(LogFieldCount, len(pending)).Msg("requeued pending analyses")
	}

	return len(pending), nil
}

// run drives one analysis. With claimPending set, the PENDING to
// COLLECTING_DATA move is a conditional write, so of several queue entries
// for one analysis only the worker that wins the claim runs it.
func (p *Processor) run(ctx context.Context, analysisID string, claimPending bool) error {
	start := p.now()

	analysis, err := p.repo.GetAnalysis(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("load analysis %s: %w", analysisID, err)
	}

	logger := p.logger.With().Str(LogFieldAnalysisID, analysisID).Str(LogFieldPostID, analysis.PostID).Logger()

	if analysis.Status.IsInactive() || (claimPending && analysis.Status != domain.AnalysisPending) {
		logger.Info().Str(LogFieldStatus, string(analysis.Status)).Msg("skipping analysis")
		p.observe(statusSkipped, start)

		return nil
	}

	status, err := p.execute(ctx, &logger, analysis, claimPending)
	if err != nil {
		p.fail(ctx, &logger, analysisID, err)
		p.observe(string(domain.AnalysisFailed), start)

		return err
	}

	p.observe(status, start)
	logger.Info().Str(LogFieldStatus, status).Dur(LogFieldDuration, p.now().Sub(start)).Msg("analysis finished")

	return nil
}

func (p *Processor) execute(ctx context.Context, logger *zerolog.Logger, analysis *domain.Analysis, claim bool) (string, error) {
	startedAt := p.now().UTC()

	if claim {
		claimed, err := p.repo.ClaimAnalysis(ctx, analysis.ID, startedAt)
		if err != nil {
			return "", err
		}

		if !claimed {
			logger.Info().Msg("analysis claimed by another worker")

			return statusSkipped, nil
		}
	} else if err := p.setStatus(ctx, analysis.ID, db.StatusUpdate{Status: domain.AnalysisCollectingData, StartedAt: &startedAt}); err != nil {
		return "", err
	}

	post, err := p.repo.GetPost(ctx, analysis.PostID)
	if err != nil {
		return "", fmt.Errorf("load post: %w", err)
	}

	if err := p.collector.Collect(ctx, post); err != nil {
		return "", err
	}

	if inactive, status, err := p.isInactive(ctx, analysis.ID); err != nil || inactive {
		if inactive {
			logger.Info().Str(LogFieldStatus, string(status)).Msg("analysis stopped after collection")
		}

		return string(status), err
	}

	if err := p.setStatus(ctx, analysis.ID, db.StatusUpdate{Status: domain.AnalysisAnalyzingData}); err != nil {
		return "", err
	}

	if err := p.analyzer.Analyze(ctx, post.ID); err != nil {
		return "", err
	}

	finishedAt := p.now().UTC()
	if err := p.setStatus(ctx, analysis.ID, db.StatusUpdate{Status: domain.AnalysisCompleted, FinishedAt: &finishedAt}); err != nil {
		return "", err
	}

	return string(domain.AnalysisCompleted), nil
}

func (p *Processor) isInactive(ctx context.Context, id string) (bool, domain.AnalysisStatus, error) {
	a, err := p.repo.GetAnalysis(ctx, id)
	if err != nil {
		return false, "", fmt.Errorf("reload analysis: %w", err)
	}

	return a.Status.IsInactive(), a.Status, nil
}

func (p *Processor) setStatus(ctx context.Context, id string, upd db.StatusUpdate) error {
	if err := p.repo.UpdateAnalysisStatus(ctx, id, upd); err != nil {
		return fmt.Errorf("set status %s: %w", upd.Status, err)
	}

	return nil
}

// fail records err as the analysis status description. It uses a fresh
// context so a canceled job still leaves a FAILED record behind.
func (p *Processor) fail(ctx context.Context, logger *zerolog.Logger, id string, cause error) {
	logger.Error().Err(cause).Msg("analysis failed")

	description := cause.Error()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.repo.UpdateAnalysisStatus(writeCtx, id, db.StatusUpdate{Status: domain.AnalysisFailed, Description: &description}); err != nil {
		logger.Error().Err(err).Msg("failed to record analysis failure")
	}
}

func (p *Processor) observe(status string, start time.Time) {
	observability.AnalysesTotal.WithLabelValues(status).Inc()
	observability.AnalysisJobDuration.WithLabelValues(status).Observe(p.now().Sub(start).Seconds())
}
