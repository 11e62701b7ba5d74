package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mern-testing/server/internal/config"
	"github.com/mern-testing/server/internal/database"
	"github.com/mern-testing/server/internal/lifecycle"
	"github.com/mern-testing/server/internal/logger"
	"github.com/mern-testing/server/internal/metrics"
	"github.com/mern-testing/server/internal/server/handlers"
	appmiddleware "github.com/mern-testing/server/internal/server/middleware"
	"github.com/mern-testing/server/internal/version"
)

// Store is the database access the server needs
type Store interface {
	IsDatabaseRunning(ctx context.Context) (bool, error)
	CreateServerRun(ctx context.Context, arg database.CreateServerRunParams) (database.ServerRun, error)
	MarkServerRunStopped(ctx context.Context, id uuid.UUID) (int64, error)
}

type Server struct {
	store   Store
	config  *config.ServerEnvironment
	logger  *slog.Logger
	metrics *metrics.Metrics
	router  *chi.Mux
	runID   uuid.UUID
}

func NewServer(
	store Store,
	cfg *config.ServerEnvironment,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Server {
	server := &Server{
		store:   store,
		config:  cfg,
		logger:  logger,
		metrics: m,
		router:  chi.NewRouter(),
		runID:   uuid.New(),
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server
}

// RunID identifies this server process in the server_runs table and on /version
func (s *Server) RunID() uuid.UUID {
	return s.runID
}

// Router exposes the handler, mostly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(appmiddleware.SecurityHeaders(s.config.EnvironmentName()))
	s.router.Use(appmiddleware.RequestSizeLimit(s.config.MaxRequestBodyBytes))
}

func (s *Server) registerRoutes() {
	v := version.Get()

	s.router.Route("/health", func(r chi.Router) {
		r.Get("/live", handlers.HandleHealth)
		r.Get("/ready", handlers.HandleReadiness(s.store))
	})

	s.router.Group(func(r chi.Router) {
		r.Use(appmiddleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
		r.Get("/version", handlers.HandleVersion(v.Version, v.BuildDate, s.runID.String()))
	})

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

// Listen binds addr and returns a listener that serves the router once Serve is called.
// The run is recorded in server_runs; a failure to record it is logged and otherwise ignored.
func (s *Server) Listen(ctx context.Context, addr string) (lifecycle.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server failed to start: %w", err)
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.recordStart(ctx, ln.Addr())

	return &Listener{
		httpServer: httpServer,
		ln:         ln,
		afterDrain: s.recordStop,
	}, nil
}

func (s *Server) recordStart(ctx context.Context, addr net.Addr) {
	port := 0
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}

	_, err := s.store.CreateServerRun(ctx, database.CreateServerRunParams{
		ID:          s.runID,
		Environment: s.config.EnvironmentName(),
		Port:        int32(port),
	})
	if err != nil {
		s.logger.Warn("failed to record server run",
			slog.String("run_id", s.runID.String()),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("server run recorded", slog.String("run_id", s.runID.String()))
}

func (s *Server) recordStop(ctx context.Context) {
	if _, err := s.store.MarkServerRunStopped(ctx, s.runID); err != nil {
		s.logger.Warn("failed to mark server run stopped",
			slog.String("run_id", s.runID.String()),
			slog.String("error", err.Error()))
	}
}

// Listener is a bound HTTP server
type Listener struct {
	httpServer *http.Server
	ln         net.Listener

	// afterDrain runs once Shutdown has let every request finish
	afterDrain func(ctx context.Context)
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve blocks until the listener is shut down. It returns nil after Shutdown or Close.
func (l *Listener) Serve() error {
	err := l.httpServer.Serve(l.ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx expires
func (l *Listener) Shutdown(ctx context.Context) error {
	if err := l.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	if l.afterDrain != nil {
		l.afterDrain(ctx)
	}
	return nil
}

// Close closes the listener and all connections immediately
func (l *Listener) Close() error {
	return l.httpServer.Close()
}
