// Package app wires the server's components into a lifecycle.Orchestrator.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mern-testing/server/internal/config"
	"github.com/mern-testing/server/internal/database"
	"github.com/mern-testing/server/internal/ephemeral"
	"github.com/mern-testing/server/internal/lifecycle"
	"github.com/mern-testing/server/internal/logger"
	"github.com/mern-testing/server/internal/metrics"
	"github.com/mern-testing/server/internal/server"
	"github.com/mern-testing/server/internal/version"
)

// Options override collaborators. Zero values select the defaults.
type Options struct {
	// Provisioner defaults to a PostgreSQL container provisioner using EPHEMERAL_IMAGE
	Provisioner ephemeral.Provisioner

	// Metrics defaults to a fresh metrics.New()
	Metrics *metrics.Metrics
}

// New builds the orchestrator for cfg: pgx connections, goose migrations when RUN_MIGRATIONS
// is set, and the chi HTTP server.
func New(cfg *config.ServerEnvironment, appLogger *slog.Logger, opts Options) *lifecycle.Orchestrator {
	if opts.Provisioner == nil {
		opts.Provisioner = ephemeral.NewPostgresProvisioner(cfg.EphemeralImage)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	dbOpts := database.OptionsFromConfig(cfg)

	return lifecycle.New(lifecycle.Config{
		Environment:     cfg.Environment,
		EnvironmentName: cfg.EnvironmentName(),
		DatabaseURL:     cfg.DatabaseURL,
		Host:            cfg.Host,
		Port:            cfg.Port,
		ShutdownTimeout: cfg.ServerShutdownTimeout,
	}, lifecycle.Dependencies{
		Connect: func(ctx context.Context, databaseURL string) (lifecycle.Database, error) {
			conn, err := database.Connect(ctx, databaseURL, dbOpts)
			if err != nil {
				// a nil *Connection must not become a non-nil interface
				return nil, err
			}
			return conn, nil
		},
		Provisioner: opts.Provisioner,
		AfterConnect: func(ctx context.Context, db lifecycle.Database) error {
			if !cfg.RunMigrations {
				return nil
			}
			conn, err := connection(db)
			if err != nil {
				return err
			}
			return database.Migrate(ctx, conn.Pool, appLogger)
		},
		NewApp: func(db lifecycle.Database) (lifecycle.App, error) {
			conn, err := connection(db)
			if err != nil {
				return nil, err
			}
			return server.NewServer(conn.Queries, cfg, appLogger, opts.Metrics), nil
		},
		Metrics: opts.Metrics,
	}, appLogger)
}

// Run logs the effective configuration, runs the lifecycle until ctx is cancelled or a fatal
// failure occurs, and returns the process exit code.
func Run(ctx context.Context, cfg *config.ServerEnvironment, appLogger *slog.Logger, opts Options) int {
	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.EnvironmentName()),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("DATABASE_URL", logger.RedactURL(cfg.DatabaseURL)),
		slog.Bool("RUN_MIGRATIONS", cfg.RunMigrations),
	)
	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	code := New(cfg, appLogger, opts).Run(ctx)
	if code == lifecycle.ExitSuccess {
		appLogger.Info("server shutdown complete")
	}
	return code
}

func connection(db lifecycle.Database) (*database.Connection, error) {
	conn, ok := db.(*database.Connection)
	if !ok {
		return nil, fmt.Errorf("unexpected database type %T", db)
	}
	return conn, nil
}
