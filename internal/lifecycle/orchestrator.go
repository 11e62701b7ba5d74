package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mern-testing/server/internal/database"
	"github.com/mern-testing/server/internal/ephemeral"
	"github.com/mern-testing/server/internal/logger"
	"github.com/mern-testing/server/internal/metrics"
)

// process exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Database is the connection handle owned by the orchestrator
type Database interface {
	Ping(ctx context.Context) error

	// Close releases the connection without interrupting work in flight
	Close()

	// Subscribe registers connection event observers
	Subscribe(events database.Events)
}

// App is the HTTP application. Listen binds addr and returns a handle that is not yet serving.
type App interface {
	Listen(ctx context.Context, addr string) (Listener, error)
}

// Listener is a bound HTTP listener
type Listener interface {
	Addr() net.Addr

	// Serve blocks until the listener is shut down. It returns nil after Shutdown or Close.
	Serve() error

	// Shutdown stops accepting connections and waits for in-flight requests
	Shutdown(ctx context.Context) error

	// Close stops the listener immediately
	Close() error
}

// Config holds the settings the orchestrator acts on
type Config struct {
	Environment     string
	EnvironmentName string
	DatabaseURL     string
	Host            string
	Port            int

	// ShutdownTimeout bounds each shutdown step
	ShutdownTimeout time.Duration
}

// Dependencies are the collaborators the orchestrator drives
type Dependencies struct {
	// Connect opens and verifies a database connection
	Connect func(ctx context.Context, databaseURL string) (Database, error)

	// Provisioner creates ephemeral database instances
	Provisioner ephemeral.Provisioner

	// AfterConnect runs once the connection is up, e.g. to apply migrations. Optional.
	AfterConnect func(ctx context.Context, db Database) error

	// NewApp builds the HTTP application on top of the connection
	NewApp func(db Database) (App, error)

	// Metrics is optional
	Metrics *metrics.Metrics
}

type failure struct {
	task string
	err  error
}

// Orchestrator runs the server lifecycle
type Orchestrator struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger
	state  *State

	tasksCtx    context.Context
	cancelTasks context.CancelFunc

	failures chan failure

	teardown sync.Once
	done     chan struct{}
	exitCode int
}

func New(cfg Config, deps Dependencies, logger *slog.Logger) *Orchestrator {
	if cfg.EnvironmentName == "" {
		cfg.EnvironmentName = cfg.Environment
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	tasksCtx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		cfg:         cfg,
		deps:        deps,
		logger:      logger,
		state:       newState(),
		tasksCtx:    tasksCtx,
		cancelTasks: cancel,
		failures:    make(chan failure, 1),
		done:        make(chan struct{}),
	}
}

// State exposes the orchestrator's resource record
func (o *Orchestrator) State() *State {
	return o.state
}

// Done is closed once teardown has finished
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Run executes the whole lifecycle and returns the process exit code.
//
// It connects to the database, starts the listener and then blocks until ctx is cancelled
// (graceful shutdown), a background task fails (fatal path) or teardown is triggered elsewhere.
func (o *Orchestrator) Run(ctx context.Context) int {
	if err := o.ConnectToDatabase(ctx, o.cfg.Environment, o.cfg.DatabaseURL); err != nil {
		o.logger.Error("Database connection error", slog.String("error", err.Error()))
		o.setPhase(PhaseStopped)
		return ExitFailure
	}

	if err := o.StartListener(ctx, o.cfg.Port); err != nil {
		o.logger.Error("Failed to start server", slog.String("error", err.Error()))
		o.releaseStartupResources()
		o.setPhase(PhaseStopped)
		return ExitFailure
	}

	return o.Wait(ctx)
}

// Wait blocks on a running server until it is torn down and returns the exit code.
// Cancelling ctx triggers GracefulShutdown; a failed background task triggers the fatal path.
func (o *Orchestrator) Wait(ctx context.Context) int {
	select {
	case <-ctx.Done():
		o.logger.Info("shutdown signal received")
		return o.GracefulShutdown(context.Background())
	case f := <-o.failures:
		return o.handleUnhandled(f)
	case <-o.done:
		return o.exitCode
	}
}

// ConnectToDatabase selects the database for mode (see SelectTarget), connects to it and
// records the handle. On error nothing is left in the state: an ephemeral instance that was
// provisioned for the attempt is stopped again.
func (o *Orchestrator) ConnectToDatabase(ctx context.Context, mode, connectionString string) error {
	o.setPhase(PhaseConnecting)

	target := SelectTarget(mode, connectionString)

	var (
		db  Database
		err error
	)

	if target.Ephemeral {
		instance, provisionErr := o.deps.Provisioner.Create(ctx, ephemeral.Options{StartupTimeout: target.StartupTimeout})
		if provisionErr != nil {
			return wrapError(ErrCodeEphemeralProvision, provisionErr, "failed to provision ephemeral database")
		}
		o.state.setEphemeral(instance)

		db, err = o.deps.Connect(ctx, instance.URI())
		if err != nil {
			o.releaseStartupResources()
			return wrapError(ErrCodeDatabaseConnect, err, "failed to connect to ephemeral database")
		}
		o.state.setDatabase(db)
		o.logger.Info("Connected to PostgreSQL Memory Server for " + target.Purpose)
	} else {
		db, err = o.deps.Connect(ctx, target.URL)
		if err != nil {
			return wrapError(ErrCodeDatabaseConnect, err, fmt.Sprintf("failed to connect to %s", logger.RedactURL(target.URL)))
		}
		o.state.setDatabase(db)
		o.logger.Info("Connected to PostgreSQL", slog.String("uri", logger.RedactURL(target.URL)))
	}

	if o.deps.AfterConnect != nil {
		if err := o.deps.AfterConnect(ctx, db); err != nil {
			o.releaseStartupResources()
			return wrapError(ErrCodeDatabaseConnect, err, "database setup failed")
		}
	}

	o.observe(db)
	o.setPhase(PhaseConnected)
	return nil
}

// observe attaches the passive connection observers
func (o *Orchestrator) observe(db Database) {
	db.Subscribe(database.Events{
		Disconnected: func() {
			o.logger.Error("PostgreSQL disconnected")
			if m := o.deps.Metrics; m != nil {
				m.DatabaseUp.Set(0)
				m.DatabaseDisconnects.Inc()
			}
		},
		Error: func(err error) {
			o.logger.Error("PostgreSQL error", slog.String("error", err.Error()))
			if m := o.deps.Metrics; m != nil {
				m.DatabaseErrors.Inc()
			}
		},
		Reconnected: func() {
			o.logger.Info("PostgreSQL reconnected")
			if m := o.deps.Metrics; m != nil {
				m.DatabaseUp.Set(1)
			}
		},
	})
	if m := o.deps.Metrics; m != nil {
		m.DatabaseUp.Set(1)
	}
}

// StartListener binds the HTTP application on port and starts serving it in the background.
// It must follow a successful ConnectToDatabase.
func (o *Orchestrator) StartListener(ctx context.Context, port int) error {
	if phase := o.state.Phase(); phase != PhaseConnected {
		return newError(ErrCodeOrdering, fmt.Sprintf("cannot start listener in phase %s: database not connected", phase))
	}

	app, err := o.deps.NewApp(o.state.Database())
	if err != nil {
		return wrapError(ErrCodeListener, err, "failed to create HTTP application")
	}

	addr := net.JoinHostPort(o.cfg.Host, strconv.Itoa(port))
	l, err := app.Listen(ctx, addr)
	if err != nil {
		return wrapError(ErrCodeListener, err, fmt.Sprintf("failed to listen on %s", addr))
	}
	o.state.setListener(l)

	o.Go("http-server", func(context.Context) error {
		return l.Serve()
	})

	o.logger.Info(fmt.Sprintf("Server started on port %d", port),
		slog.String("environment", o.cfg.EnvironmentName),
		slog.String("address", l.Addr().String()),
	)
	o.setPhase(PhaseListening)
	return nil
}

// releaseStartupResources undoes a partial startup: database first, then the ephemeral instance
func (o *Orchestrator) releaseStartupResources() {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ShutdownTimeout)
	defer cancel()

	if db := o.state.takeDatabase(); db != nil {
		o.closeDatabase(ctx, db)
	}
	if instance := o.state.takeEphemeral(); instance != nil {
		if err := instance.Stop(ctx); err != nil {
			o.logger.Error("Failed to stop PostgreSQL Memory Server", slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.state.setPhase(p)
	if m := o.deps.Metrics; m != nil {
		m.SetPhase(string(p), allPhases)
	}
}
