package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// GracefulShutdown tears the server down and returns ExitSuccess.
//
// The listener is closed first and allowed to drain, then the database is closed, then the
// ephemeral instance (if any) is stopped. Each step starts after the previous one finished.
// A step that exceeds the shutdown timeout is abandoned with a warning and the next step runs.
//
// Only the first teardown request does any work: later calls, and calls racing the unhandled
// failure path, wait for it to finish and return its exit code.
func (o *Orchestrator) GracefulShutdown(ctx context.Context) int {
	o.teardown.Do(func() {
		o.setPhase(PhaseShuttingDown)
		o.cancelTasks()
		o.logger.Info("Graceful shutdown initiated")

		o.step(ctx, "close_listener", func(stepCtx context.Context) {
			if l := o.state.takeListener(); l != nil {
				o.closeListener(stepCtx, l)
			}
			o.logger.Info("HTTP server closed")
		})

		o.step(ctx, "close_database", func(stepCtx context.Context) {
			if db := o.state.takeDatabase(); db != nil {
				o.closeDatabase(stepCtx, db)
			}
			o.logger.Info("PostgreSQL connection closed")
		})

		o.step(ctx, "stop_ephemeral", func(stepCtx context.Context) {
			instance := o.state.takeEphemeral()
			if instance == nil {
				return
			}
			if err := instance.Stop(stepCtx); err != nil {
				o.logger.Error("Failed to stop PostgreSQL Memory Server", slog.String("error", err.Error()))
				return
			}
			o.logger.Info("PostgreSQL Memory Server stopped")
		})

		o.finish(ExitSuccess)
	})
	<-o.done
	return o.exitCode
}

// handleUnhandled is the fatal runtime path: log, close the listener, exit 1.
// Database and ephemeral teardown are skipped.
func (o *Orchestrator) handleUnhandled(f failure) int {
	o.teardown.Do(func() {
		o.setPhase(PhaseFailing)
		o.cancelTasks()
		o.logger.Error("Unhandled failure",
			slog.String("task", f.task),
			slog.String("reason", f.err.Error()),
		)
		if m := o.deps.Metrics; m != nil {
			m.UnhandledFailures.Inc()
		}

		if l := o.state.takeListener(); l != nil {
			ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ShutdownTimeout)
			o.closeListener(ctx, l)
			cancel()
		}

		o.finish(ExitFailure)
	})
	<-o.done
	return o.exitCode
}

func (o *Orchestrator) finish(code int) {
	o.exitCode = code
	o.setPhase(PhaseStopped)
	close(o.done)
}

// step runs one shutdown step with its own timeout derived from ctx
func (o *Orchestrator) step(ctx context.Context, name string, fn func(stepCtx context.Context)) {
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.ShutdownTimeout)
	defer cancel()

	start := time.Now()
	fn(stepCtx)

	if m := o.deps.Metrics; m != nil {
		m.ShutdownStepDurations.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// closeListener drains the listener, forcing it closed if ctx expires first
func (o *Orchestrator) closeListener(ctx context.Context, l Listener) {
	err := l.Shutdown(ctx)
	if err == nil {
		return
	}

	o.logger.Warn("HTTP server did not shut down cleanly, closing remaining connections",
		slog.String("error", err.Error()))

	if cerr := l.Close(); cerr != nil {
		o.logger.Warn("HTTP server close error", slog.String("error", cerr.Error()))
	}
}

// closeDatabase closes db, giving up waiting when ctx expires. The close keeps running in the
// background in that case; the process is about to exit.
func (o *Orchestrator) closeDatabase(ctx context.Context, db Database) {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		db.Close()
	}()

	select {
	case <-closed:
	case <-ctx.Done():
		o.logger.Warn("PostgreSQL connection did not close in time, continuing shutdown",
			slog.String("error", ctx.Err().Error()))
	}
}
