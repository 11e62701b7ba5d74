package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// run modes recognised by the lifecycle. Anything else is treated as production.
const (
	ModeTest        = "test"
	ModeDevelopment = "development"
)

// DefaultDatabaseURL is used when DATABASE_URL is not set outside of the ephemeral modes
const DefaultDatabaseURL = "postgres://localhost:5432/mern-testing?sslmode=disable"

// Environment variables with defaults
type ServerEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=5000"`
	LogLevel              string        `env:"LOG_LEVEL,default=info"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`
	MaxRequestBodyBytes   int64         `env:"MAX_REQUEST_BODY_BYTES,default=1048576"`

	// database settings
	// DatabaseURL has no default: development only provisions an ephemeral database when it is unset
	DatabaseURL           string        `env:"DATABASE_URL"`
	DBMaxConnections      int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections      int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime     time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime     time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout      time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout   time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`
	DBHealthCheckInterval time.Duration `env:"DB_HEALTH_CHECK_INTERVAL,default=10s"`
	RunMigrations         bool          `env:"RUN_MIGRATIONS,default=true"`

	// ephemeral database settings (test and development modes)
	EphemeralImage string `env:"EPHEMERAL_IMAGE,default=postgres:16-alpine"`
}

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values.
//
// A .env file in the working directory is loaded first when present. Variables already set
// in the process environment take precedence over the file.
func NewServerConfig() (*ServerEnvironment, error) {
	return NewServerConfigFromFiles(".env")
}

// NewServerConfigFromFiles is NewServerConfig with explicit dotenv files. Missing files are ignored.
func NewServerConfigFromFiles(files ...string) (*ServerEnvironment, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnvironmentName is the environment reported in logs. An unset ENVIRONMENT is reported as development
// even though it does not select the development database branch.
func (c *ServerEnvironment) EnvironmentName() string {
	if c.Environment == "" {
		return ModeDevelopment
	}
	return c.Environment
}

// IsTest reports whether the server runs in test mode
func (c *ServerEnvironment) IsTest() bool {
	return c.Environment == ModeTest
}

// validateConfig checks for required env variables
func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Validate database pool configuration
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}
	if cfg.DBHealthCheckInterval <= 0 {
		return fmt.Errorf("DB_HEALTH_CHECK_INTERVAL must be greater than 0")
	}

	if cfg.ServerShutdownTimeout <= 0 {
		return fmt.Errorf("SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if cfg.MaxRequestBodyBytes < 1 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be at least 1")
	}

	return nil
}
