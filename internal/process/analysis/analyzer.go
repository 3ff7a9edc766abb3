// Package analysis annotates the unprocessed comments of a post: it chunks
// them, sends each chunk to the configured LLM provider in order, extracts the
// JSON results and writes them back onto the comments.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/jsonextract"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/llm"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/observability"
)

// CommentSource lists comments that still lack annotations.
type CommentSource interface {
	// ListUnprocessedComments returns the post's comments with no processed
	// timestamp, oldest first.
	ListUnprocessedComments(ctx context.Context, postID string) ([]domain.Comment, error)
}

// Repository is the storage the analyzer needs.
type Repository interface {
	CommentSource
	CommentUpdater
}

// Options carries the per-provider knobs injected by the caller.
type Options struct {
	ChunkBytes   int
	BatchSize    int
	SystemPrompt string
}

// Analyzer runs the chunk loop for one post at a time. Chunks are sent
// strictly in sequence; distinct posts may share one Analyzer concurrently.
type Analyzer struct {
	repo      Repository
	provider  llm.Provider
	persister *Persister
	opts      Options
	logger    *zerolog.Logger
}

// NewAnalyzer wires an Analyzer. Empty options fall back to the built-in prompt
// and batch size.
func NewAnalyzer(repo Repository, provider llm.Provider, opts Options, logger *zerolog.Logger) *Analyzer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if opts.SystemPrompt == "" {
		opts.SystemPrompt = llm.AnalyzeCommentsPrompt
	}

	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}

	return &Analyzer{
		repo:      repo,
		provider:  provider,
		persister: NewPersister(repo, opts.BatchSize, logger),
		opts:      opts,
		logger:    logger,
	}
}

// Analyze annotates every unprocessed comment of postID. Any chunk failure
// aborts the run before anything is persisted.
func (a *Analyzer) Analyze(ctx context.Context, postID string) error {
	if err := a.analyze(ctx, postID); err != nil {
		return fmt.Errorf(errAnalysisFailed, err)
	}

	return nil
}

func (a *Analyzer) analyze(ctx context.Context, postID string) error {
	comments, err := a.repo.ListUnprocessedComments(ctx, postID)
	if err != nil {
		return fmt.Errorf("loading unprocessed comments: %w", err)
	}

	logger := a.logger.With().
		Str(LogFieldPostID, postID).
		Str(LogFieldProvider, string(a.provider.Name())).
		Logger()

	if len(comments) == 0 {
		logger.Info().Msg("no unprocessed comments")

		return nil
	}

	chunks, err := ChunkComments(comments, a.opts.ChunkBytes)
	if err != nil {
		return err
	}

	logger.Info().
		Int(LogFieldComments, len(comments)).
		Int(LogFieldChunks, len(chunks)).
		Msg("starting comment analysis")

	var results []map[string]any

	for i, chunk := range chunks {
		extracted, err := a.runChunk(ctx, &logger, i, len(chunks), chunk)
		if err != nil {
			return err
		}

		results = append(results, extracted...)
	}

	persisted, err := a.persister.Persist(ctx, comments, results)
	if err != nil {
		return err
	}

	logger.Info().
		Int(LogFieldComments, len(comments)).
		Int(LogFieldResults, len(results)).
		Int(LogFieldPersisted, persisted).
		Msg("comment analysis finished")

	return nil
}

func (a *Analyzer) runChunk(ctx context.Context, logger *zerolog.Logger, index, total int, chunk string) ([]map[string]any, error) {
	provider := string(a.provider.Name())
	start := time.Now()

	raw, err := a.provider.Complete(ctx, a.opts.SystemPrompt, chunk)
	elapsed := time.Since(start)

	observability.AnalysisChunkDuration.WithLabelValues(provider).Observe(elapsed.Seconds())

	if err != nil {
		observability.AnalysisChunks.WithLabelValues(provider, chunkStatusError).Inc()
		logger.Error().Err(err).
			Int(LogFieldChunk, index+1).
			Int(LogFieldChunks, total).
			Dur(LogFieldDuration, elapsed).
			Msg("chunk analysis failed")

		return nil, fmt.Errorf("chunk %d/%d: %w", index+1, total, err)
	}

	observability.AnalysisChunks.WithLabelValues(provider, chunkStatusOK).Inc()

	extracted := jsonextract.Extract(raw)
	if len(extracted) == 0 {
		observability.AnalysisEmptyChunks.WithLabelValues(provider).Inc()
		logger.Warn().
			Int(LogFieldChunk, index+1).
			Int(LogFieldResponseBytes, len(raw)).
			Msg("no JSON objects in provider response")
	}

	logger.Info().
		Int(LogFieldChunk, index+1).
		Int(LogFieldChunks, total).
		Int(LogFieldProgressPct, (index+1)*100/total).
		Int(LogFieldChunkBytes, len(chunk)).
		Int(LogFieldResponseBytes, len(raw)).
		Int(LogFieldResults, len(extracted)).
		Dur(LogFieldDuration, elapsed).
		Msg("chunk analyzed")

	return extracted, nil
}
