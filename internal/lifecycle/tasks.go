package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a background goroutine. An error returned by fn, or a panic inside it, is an
// unhandled failure: the orchestrator logs it, closes the listener and Run returns ExitFailure.
//
// fn receives a context that is cancelled when teardown starts. Failures reported after
// teardown has started are logged and otherwise ignored.
func (o *Orchestrator) Go(task string, fn func(ctx context.Context) error) {
	go func() {
		if err := o.runTask(fn); err != nil {
			o.reportFailure(task, err)
		}
	}()
}

func (o *Orchestrator) runTask(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			o.logger.Debug("recovered panic", slog.String("stack", string(debug.Stack())))
		}
	}()
	return fn(o.tasksCtx)
}

func (o *Orchestrator) reportFailure(task string, err error) {
	switch o.state.Phase() {
	case PhaseShuttingDown, PhaseFailing, PhaseStopped:
		o.logger.Error("Unhandled failure during shutdown",
			slog.String("task", task),
			slog.String("reason", err.Error()),
		)
		return
	}

	select {
	case o.failures <- failure{task: task, err: err}:
	default:
		// another failure is already being handled
		o.logger.Error("Unhandled failure",
			slog.String("task", task),
			slog.String("reason", err.Error()),
		)
	}
}
