package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mern-testing/server/internal/logger"
)

// ReadinessChecker reports whether the database answers queries
type ReadinessChecker interface {
	IsDatabaseRunning(ctx context.Context) (bool, error)
}

// HandleHealth godoc
//
//	@Summary		Health (liveness) Check
//	@Description	Reports that the HTTP service is alive and responding. Does not touch the database.
//	@Tags			Common
//	@Produce		plain
//
//	@Success		200	{string}	string	"OK"
//
//	@Router			/health/live [get]
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleReadiness godoc
//
//	@Summary		Readiness Check
//	@Description	Checks if the service is ready to accept traffic (includes database connectivity)
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	map[string]string	"status ready"
//	@Failure		503	{object}	map[string]string	"status not ready"
//	@Router			/health/ready [get]
func HandleReadiness(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Check database connectivity
		running, err := checker.IsDatabaseRunning(r.Context())
		if err != nil || !running {
			if err != nil {
				logger.ContextWithLogAttrs(r.Context(), slog.String("error", err.Error()))
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}
