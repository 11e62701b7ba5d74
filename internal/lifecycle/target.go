package lifecycle

import (
	"time"

	"github.com/mern-testing/server/internal/config"
	"github.com/mern-testing/server/internal/ephemeral"
)

// DevEphemeralStartupTimeout gives slow development machines longer to start the ephemeral database
const DevEphemeralStartupTimeout = 30 * time.Second

// Target is the database selected for a run mode
type Target struct {
	// Ephemeral is true when the orchestrator must provision the database itself
	Ephemeral bool

	// StartupTimeout for the ephemeral instance
	StartupTimeout time.Duration

	// URL to connect to when Ephemeral is false
	URL string

	// Purpose names the run mode in the connection log line
	Purpose string
}

// SelectTarget picks the database for mode. The first matching rule wins:
// test mode always provisions, development provisions only without a connection string,
// everything else connects to connectionString or config.DefaultDatabaseURL.
func SelectTarget(mode, connectionString string) Target {
	switch {
	case mode == config.ModeTest:
		return Target{
			Ephemeral:      true,
			StartupTimeout: ephemeral.DefaultStartupTimeout,
			Purpose:        "testing",
		}
	case mode == config.ModeDevelopment && connectionString == "":
		return Target{
			Ephemeral:      true,
			StartupTimeout: DevEphemeralStartupTimeout,
			Purpose:        "development",
		}
	}

	url := connectionString
	if url == "" {
		url = config.DefaultDatabaseURL
	}
	return Target{URL: url}
}
