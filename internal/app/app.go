// Package app wires dependencies together and exposes the process modes:
//
//   - Serve mode: REST API for submitting and polling analyses
//   - Worker mode: consumes the analysis queue, collects comments and annotates them
//   - Analyze: runs one analysis synchronously from the CLI
//   - Telegram login: interactive MTProto sign-in that writes the session file
//
// Every long-running mode also serves /healthz, /readyz and /metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/llm"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/httpapi"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/ingest/telegram"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/observability"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/worker"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/process/analysis"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/process/collection"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/process/jobs"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/queue"
	db "github.com/vibeanalyze/vibeanalyze-backend/internal/storage"
)

const (
	// requeueInterval re-enqueues analyses stuck in PENDING, e.g. after a queue flush.
	requeueInterval = 10 * time.Minute

	// workerErrorBackoff is the pause after a queue error before polling again.
	workerErrorBackoff = 5 * time.Second

	logFieldAnalysisID = "analysis_id"
	logFieldWorkers    = "workers"
	logFieldProvider   = "provider"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// RunServe runs the REST API and the health server.
func (a *App) RunServe(ctx context.Context) error {
	a.logger.Info().Msg("Starting serve mode")

	q, err := queue.New(ctx, a.cfg.QueueConfig, a.logger)
	if err != nil {
		return err
	}
	defer q.Close()

	api := httpapi.NewServer(a.database, q, a.cfg.HTTPPort, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return api.Start(gctx) })
	g.Go(func() error { return a.startHealthServer(gctx, q) })

	return g.Wait()
}

// RunWorker consumes the analysis queue with AnalysisConcurrency workers.
func (a *App) RunWorker(ctx context.Context) error {
	a.logger.Info().Msg("Starting worker mode")

	q, err := queue.New(ctx, a.cfg.QueueConfig, a.logger)
	if err != nil {
		return err
	}
	defer q.Close()

	provider, err := llm.New(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("llm provider init: %w", err)
	}
	defer closeProvider(provider, a.logger)

	tgClient := a.newTelegramClient()
	processor := a.newProcessor(provider, tgClient, q)

	if _, err := processor.RequeuePending(ctx); err != nil {
		a.logger.Error().Err(err).Msg("failed to requeue pending analyses")
	}

	g, gctx := errgroup.WithContext(ctx)

	if tgClient != nil {
		g.Go(func() error { return tgClient.Run(gctx) })
	}

	g.Go(func() error { return a.startHealthServer(gctx, q) })

	g.Go(func() error {
		a.logger.Info().
			Int(logFieldWorkers, a.cfg.AnalysisConcurrency).
			Str(logFieldProvider, string(provider.Name())).
			Msg("analysis workers started")

		return worker.Pool(gctx, a.cfg.AnalysisConcurrency, worker.Config{
			Name:    "analysis",
			Process: processor.HandleNext,
			PeriodicTasks: []worker.PeriodicTask{{
				Name:     "requeue_pending",
				Interval: requeueInterval,
				Run: func(ctx context.Context) {
					if _, err := processor.RequeuePending(ctx); err != nil {
						a.logger.Error().Err(err).Msg("periodic requeue failed")
					}
				},
			}},
			OnError: func(err error) bool {
				a.logger.Error().Err(err).Msg("queue poll failed")

				return worker.Wait(gctx, workerErrorBackoff) == nil
			},
			Logger: a.logger,
		})
	})

	return g.Wait()
}

// RunAnalysis runs one analysis to completion, rerunning it when it previously failed.
func (a *App) RunAnalysis(ctx context.Context, analysisID string) error {
	provider, err := llm.New(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("llm provider init: %w", err)
	}
	defer closeProvider(provider, a.logger)

	tgClient := a.newTelegramClient()
	processor := a.newProcessor(provider, tgClient, nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if tgClient != nil {
		g.Go(func() error {
			if err := tgClient.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		})
	}

	g.Go(func() error {
		defer cancel()

		return processor.Run(gctx, analysisID)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("analysis %s: %w", analysisID, err)
	}

	a.logger.Info().Str(logFieldAnalysisID, analysisID).Msg("analysis run finished")

	return nil
}

// TelegramLogin performs the interactive MTProto sign-in.
func (a *App) TelegramLogin(ctx context.Context) error {
	return telegram.NewClient(a.cfg, a.logger).Login(ctx)
}

func (a *App) startHealthServer(ctx context.Context, q *queue.Queue) error {
	checks := map[string]observability.Pinger{"database": a.database}
	if q != nil {
		checks["queue"] = q
	}

	srv := observability.NewServer(checks, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// newTelegramClient returns nil when no MTProto credentials are configured;
// Telegram analyses then fail as platform unavailable.
func (a *App) newTelegramClient() *telegram.Client {
	if a.cfg.TGAPIID == 0 || a.cfg.TGAPIHash == "" {
		a.logger.Warn().Msg("TG_API_ID/TG_API_HASH not set; telegram collection disabled")

		return nil
	}

	return telegram.NewClient(a.cfg, a.logger)
}

func (a *App) newProcessor(provider llm.Provider, tgClient *telegram.Client, q jobs.JobQueue) *jobs.Processor {
	collectors := map[domain.Platform]collection.PlatformCollector{}
	if tgClient != nil {
		collectors[domain.PlatformTelegram] = telegram.NewCollector(tgClient, a.cfg.TelegramMTProtoConfig, a.logger)
	}

	collector := collection.New(a.database, collectors, a.logger)

	analyzer := analysis.NewAnalyzer(a.database, provider, analysis.Options{
		ChunkBytes: a.cfg.ChunkBytesFor(a.cfg.AnalyzeAIProvider),
		BatchSize:  a.cfg.AnalysisPersistBatchSize,
	}, a.logger)

	return jobs.New(a.database, collector, analyzer, q, a.logger)
}

func closeProvider(p llm.Provider, logger *zerolog.Logger) {
	if err := p.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close llm provider")
	}
}
