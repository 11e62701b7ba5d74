package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mern-testing/server/internal/config"
)

// Options configures the pool and the connection monitor
type Options struct {
	MaxConns            int32
	MinConns            int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	ConnectTimeout      time.Duration
	PingTimeout         time.Duration
	HealthCheckInterval time.Duration
}

// OptionsFromConfig maps the DB_* environment settings to Options
func OptionsFromConfig(cfg *config.ServerEnvironment) Options {
	return Options{
		MaxConns:            cfg.DBMaxConnections,
		MinConns:            cfg.DBMinConnections,
		MaxConnLifetime:     cfg.DBMaxConnLifetime,
		MaxConnIdleTime:     cfg.DBMaxConnIdleTime,
		ConnectTimeout:      cfg.DBConnectTimeout,
		PingTimeout:         cfg.DatabasePingTimeout,
		HealthCheckInterval: cfg.DBHealthCheckInterval,
	}
}

// Connection is an open, verified pool plus the monitor watching it
type Connection struct {
	Pool    *pgxpool.Pool
	Queries *Queries

	monitor *monitor
}

// Connect opens a pool for databaseURL and pings it. The pool is closed again if the ping fails.
func Connect(ctx context.Context, databaseURL string, opts Options) (*Connection, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	poolConfig.MinConns = opts.MinConns
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}
	dbCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dbCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(dbCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database via pool: %w", err)
	}

	interval := opts.HealthCheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	c := &Connection{
		Pool:    pool,
		Queries: New(pool),
		monitor: newMonitor(pool.Ping, interval, pingTimeout),
	}
	c.monitor.start()

	return c, nil
}

// Ping checks the database is reachable
func (c *Connection) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Subscribe registers handlers for connection events. It may be called any number of times.
func (c *Connection) Subscribe(events Events) {
	c.monitor.subscribe(events)
}

// Close stops the monitor and closes the pool. Close does not interrupt queries in flight:
// it blocks until every acquired connection has been released.
func (c *Connection) Close() {
	c.monitor.stop()
	c.Pool.Close()
}
