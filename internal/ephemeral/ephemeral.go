// Package ephemeral provisions throwaway PostgreSQL servers for test and development runs.
//
// An instance is a postgres container whose data directory is a tmpfs mount, so nothing
// outlives Stop. Docker (or a compatible runtime) must be reachable by testcontainers.
package ephemeral

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultImage          = "postgres:16-alpine"
	DefaultStartupTimeout = 10 * time.Second

	databaseName = "mern-testing"
	username     = "ephemeral"
	password     = "ephemeral"
	dataDir      = "/var/lib/postgresql/data"
)

// Options for a new instance
type Options struct {
	// StartupTimeout bounds the wait for the server to accept connections,
	// not counting the image pull. Zero means DefaultStartupTimeout.
	StartupTimeout time.Duration
}

// Instance is a running ephemeral server
type Instance interface {
	// URI is the connection string for the instance's database
	URI() string

	// Stop terminates the server and discards its data
	Stop(ctx context.Context) error
}

// Provisioner creates ephemeral instances
type Provisioner interface {
	Create(ctx context.Context, opts Options) (Instance, error)
}

// PostgresProvisioner starts instances with the testcontainers postgres module
type PostgresProvisioner struct {
	image string
}

func NewPostgresProvisioner(image string) *PostgresProvisioner {
	if image == "" {
		image = DefaultImage
	}
	return &PostgresProvisioner{image: image}
}

func (p *PostgresProvisioner) Create(ctx context.Context, opts Options) (Instance, error) {
	startupTimeout := opts.StartupTimeout
	if startupTimeout <= 0 {
		startupTimeout = DefaultStartupTimeout
	}

	// PostgreSQL outputs "database system is ready" twice during startup (once during
	// bootstrap, once when fully ready), so we wait for 2 occurrences.
	container, err := tcpostgres.Run(ctx,
		p.image,
		tcpostgres.WithDatabase(databaseName),
		tcpostgres.WithUsername(username),
		tcpostgres.WithPassword(password),
		testcontainers.CustomizeRequest(testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Tmpfs: map[string]string{dataDir: "rw"},
			},
		}),
		testcontainers.WithWaitStrategyAndDeadline(startupTimeout,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		if container != nil {
			_ = container.Terminate(context.WithoutCancel(ctx))
		}
		return nil, fmt.Errorf("failed to start ephemeral postgres (%s): %w", p.image, err)
	}

	uri, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to get ephemeral postgres connection string: %w", err)
	}

	return &postgresInstance{container: container, uri: uri}, nil
}

type postgresInstance struct {
	container *tcpostgres.PostgresContainer
	uri       string
}

func (i *postgresInstance) URI() string {
	return i.uri
}

func (i *postgresInstance) Stop(ctx context.Context) error {
	if err := i.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate ephemeral postgres: %w", err)
	}
	return nil
}
