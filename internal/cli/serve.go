package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mern-testing/server/internal/app"
)

// runServer runs the server until SIGINT/SIGTERM or a fatal failure and returns the exit code
func runServer(ctx context.Context) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, cfg, appLogger, app.Options{})
}
