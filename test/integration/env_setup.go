//go:build integration

package integration

// Test environment setup and server lifecycle management.
//
// The integration tests run the complete server lifecycle in-process: an ephemeral PostgreSQL
// container is provisioned (test mode), migrations are applied, the HTTP server is started on a
// free port and the tests talk to it over HTTP. Docker must be available.
//
// By default the server logs are not included in the test output, you can enable them with:
//
//	ENABLE_SERVER_LOGS=true go test -tags=integration -v ./test/integration
//

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mern-testing/server/internal/app"
	"github.com/mern-testing/server/internal/config"
	"github.com/mern-testing/server/internal/database"
	"github.com/mern-testing/server/internal/ephemeral"
	"github.com/mern-testing/server/internal/lifecycle"
	"github.com/mern-testing/server/internal/logger"
)

// testEnv provides access to the running server for integration tests
type testEnv struct {
	baseURL      string
	cfg          *config.ServerEnvironment
	orchestrator *lifecycle.Orchestrator
	provisioner  *recordingProvisioner

	cancel   context.CancelFunc
	exitCode chan int
}

// startInProcessServer runs the server lifecycle with the given ENVIRONMENT and waits for /health/live
func startInProcessServer(t *testing.T, environment string) *testEnv {
	t.Helper()

	port := findFreePort(t)

	t.Setenv("HOST", "localhost")
	t.Setenv("PORT", fmt.Sprintf("%d", port))
	t.Setenv("ENVIRONMENT", environment)
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("DB_HEALTH_CHECK_INTERVAL", "500ms")

	cfg, err := config.NewServerConfigFromFiles()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logger.LevelNone
	if os.Getenv("ENABLE_SERVER_LOGS") == "true" {
		logLevel = logger.ParseLogLevel("debug")
	}
	appLogger := logger.InitLogger(logLevel, "test")

	env := &testEnv{
		baseURL: fmt.Sprintf("http://localhost:%d", port),
		cfg:     cfg,
		provisioner: &recordingProvisioner{
			Provisioner: ephemeral.NewPostgresProvisioner(cfg.EphemeralImage),
		},
		exitCode: make(chan int, 1),
	}

	env.orchestrator = app.New(cfg, appLogger, app.Options{Provisioner: env.provisioner})

	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel

	go func() {
		env.exitCode <- env.orchestrator.Run(ctx)
	}()

	if !waitForServer(t, env.baseURL+"/health/live", 120*time.Second) {
		cancel()
		t.Fatal("Server failed to start within timeout")
	}

	t.Cleanup(func() {
		env.shutdown(t)
	})

	t.Log("✅ Server started")
	return env
}

// shutdown triggers a graceful shutdown and returns the exit code. It is safe to call more than once.
func (e *testEnv) shutdown(t *testing.T) int {
	t.Helper()

	e.cancel()

	select {
	case code := <-e.exitCode:
		e.exitCode <- code
		return code
	case <-time.After(60 * time.Second):
		t.Fatal("server did not shut down within timeout")
		return -1
	}
}

// queries returns the queries of the orchestrator's open connection
func (e *testEnv) queries(t *testing.T) *database.Queries {
	t.Helper()

	conn, ok := e.orchestrator.State().Database().(*database.Connection)
	if !ok {
		t.Fatal("no open database connection")
	}
	return conn.Queries
}

// recordingProvisioner wraps a provisioner so tests can run checks just before an instance is stopped
type recordingProvisioner struct {
	ephemeral.Provisioner

	mu         sync.Mutex
	created    []string
	beforeStop func(uri string)
	stopped    int
}

func (p *recordingProvisioner) Create(ctx context.Context, opts ephemeral.Options) (ephemeral.Instance, error) {
	instance, err := p.Provisioner.Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.created = append(p.created, instance.URI())
	p.mu.Unlock()
	return &recordingInstance{Instance: instance, p: p}, nil
}

func (p *recordingProvisioner) onStop(hook func(uri string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beforeStop = hook
}

type recordingInstance struct {
	ephemeral.Instance
	p *recordingProvisioner
}

func (i *recordingInstance) Stop(ctx context.Context) error {
	i.p.mu.Lock()
	hook := i.p.beforeStop
	i.p.stopped++
	i.p.mu.Unlock()

	if hook != nil {
		hook(i.URI())
	}
	return i.Instance.Stop(ctx)
}

func findFreePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port
}

func waitForServer(t *testing.T, url string, timeout time.Duration) bool {
	t.Helper()

	client := &http.Client{Timeout: 1 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
