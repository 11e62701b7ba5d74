package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mern-testing/server/internal/config"
	"github.com/mern-testing/server/internal/database"
	"github.com/mern-testing/server/internal/metrics"
	"github.com/mern-testing/server/internal/server/handlers"
)

type fakeStore struct {
	mu      sync.Mutex
	started []database.CreateServerRunParams
	stopped []uuid.UUID
}

func (f *fakeStore) IsDatabaseRunning(ctx context.Context) (bool, error) {
	return true, nil
}

func (f *fakeStore) CreateServerRun(ctx context.Context, arg database.CreateServerRunParams) (database.ServerRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, arg)
	return database.ServerRun{ID: arg.ID, Environment: arg.Environment, Port: arg.Port, StartedAt: time.Now()}, nil
}

func (f *fakeStore) MarkServerRunStopped(ctx context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	return 1, nil
}

func testConfig() *config.ServerEnvironment {
	return &config.ServerEnvironment{
		Environment:         "test",
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		IdleTimeout:         5 * time.Second,
		RateLimitRPS:        0,
		MaxRequestBodyBytes: 1024,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerListenServeShutdown(t *testing.T) {
	store := &fakeStore{}
	s := NewServer(store, testConfig(), discardLogger(), metrics.New())

	l, err := s.Listen(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- l.Serve() }()

	baseURL := "http://" + l.Addr().String()

	resp, err := http.Get(baseURL + "/health/live")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: got %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(baseURL + "/version")
	if err != nil {
		t.Fatalf("version request failed: %v", err)
	}
	var v handlers.VersionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode version: %v", err)
	}
	resp.Body.Close()
	if v.InstanceID != s.RunID().String() {
		t.Errorf("instance id: got %s, want %s", v.InstanceID, s.RunID())
	}

	resp, err = http.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `http_requests_total{method="GET",route="/health/live",status="200"} 1`) {
		t.Errorf("expected the health request to be counted, got:\n%s", body)
	}

	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v after shutdown, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}

	if len(store.started) != 1 || store.started[0].ID != s.RunID() || store.started[0].Environment != "test" {
		t.Errorf("unexpected server run record: %+v", store.started)
	}
	if len(store.stopped) != 1 || store.stopped[0] != s.RunID() {
		t.Errorf("server run not marked stopped: %v", store.stopped)
	}
}

func TestShutdownWaitsForInFlightRequests(t *testing.T) {
	s := NewServer(&fakeStore{}, testConfig(), discardLogger(), nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	s.router.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	l, err := s.Listen(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go func() { _ = l.Serve() }()

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + l.Addr().String() + "/slow")
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()
	<-entered

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- l.Shutdown(context.Background()) }()

	select {
	case <-shutdownDone:
		t.Fatal("Shutdown returned while a request was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	if err := <-shutdownDone; err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
	if got := <-status; got != http.StatusOK {
		t.Errorf("in-flight request: got status %d, want 200", got)
	}
}

func TestShutdownTimeoutReturnsError(t *testing.T) {
	s := NewServer(&fakeStore{}, testConfig(), discardLogger(), nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	s.router.Get("/stuck", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	l, err := s.Listen(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go func() { _ = l.Serve() }()
	go func() {
		resp, err := http.Get("http://" + l.Addr().String() + "/stuck")
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Shutdown(ctx); err == nil {
		t.Error("expected Shutdown to fail when requests do not drain in time")
	}
	if err := l.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestListenBindFailure(t *testing.T) {
	s := NewServer(&fakeStore{}, testConfig(), discardLogger(), nil)

	l, err := s.Listen(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer l.Close()
	go func() { _ = l.Serve() }()

	if _, err := s.Listen(context.Background(), l.Addr().String()); err == nil {
		t.Error("expected binding an address in use to fail")
	}
}
