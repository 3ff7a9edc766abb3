package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/app"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
	db "github.com/vibeanalyze/vibeanalyze-backend/internal/storage"
)

var version = "dev"

var (
	cfg         *config.Config
	logger      zerolog.Logger
	skipMigrate bool
)

// stderr receives logs and errors raised before the logger exists.
var stderr io.Writer = os.Stderr

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := execute(ctx, os.Args[1:])

	stop()
	os.Exit(code)
}

// execute runs the command tree and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			_, _ = fmt.Fprintln(stderr, "vibeanalyze:", err) //nolint:errcheck // nothing left to report to
		}

		return 1
	}

	return 0
}

// errReported marks an error that report already logged.
var errReported = errors.New("application error")

var rootCmd = &cobra.Command{
	Use:           "vibeanalyze",
	Short:         "Collect post comments and annotate them with an LLM",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error

		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger = newLogger(cfg)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply database migrations on start")

	telegramCmd.AddCommand(telegramLoginCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(telegramCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, application *app.App) error {
			return application.RunServe(ctx)
		})
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the analysis queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, application *app.App) error {
			return application.RunWorker(ctx)
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <analysis-id>",
	Short: "Run one analysis synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, application *app.App) error {
			return application.RunAnalysis(ctx, args[0])
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(context.Context, *app.App) error {
			logger.Info().Msg("migrations applied")

			return nil
		})
	},
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Telegram session management",
}

var telegramLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in interactively and write the MTProto session file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		application := app.New(cfg, nil, &logger)

		return report(application.TelegramLogin(cmd.Context()))
	},
}

// withApp connects to the database, optionally migrates it, and runs fn.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if err := cfg.ValidateDatabase(); err != nil {
		return report(err)
	}

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, db.PoolOptionsFromConfig(cfg.DatabaseConfig), &logger)
	if err != nil {
		return report(fmt.Errorf("failed to connect to database: %w", err))
	}
	defer database.Close()

	if !skipMigrate {
		if err := database.Migrate(ctx); err != nil {
			return report(fmt.Errorf("failed to run migrations: %w", err))
		}
	}

	return report(fn(ctx, app.New(cfg, database, &logger)))
}

// report logs the outcome; a canceled context is a clean shutdown.
func report(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info().Msg("application stopped")

		return nil
	}

	logger.Error().Err(err).Msg("application error")

	return errReported
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.IsLocal() {
		return zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(stderr).Level(level).With().Timestamp().Logger()
}
