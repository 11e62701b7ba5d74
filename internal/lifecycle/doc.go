// Package lifecycle orchestrates server startup and teardown.
//
// The Orchestrator owns three resources, recorded in State:
//
//   - the database connection
//   - the ephemeral database instance, present only when the orchestrator provisioned the database itself
//   - the HTTP listener
//
// Startup is connect, then listen. The database target depends on the run mode:
//
//   - test: always an ephemeral instance, even when a connection string is configured
//   - development without DATABASE_URL: an ephemeral instance with a 30 second startup timeout
//   - anything else: DATABASE_URL, or config.DefaultDatabaseURL when unset
//
// A failed connect ends the run with ExitFailure before any listener is bound.
//
// Teardown happens once, on one of two paths:
//
//   - GracefulShutdown (SIGTERM, SIGINT): close the listener, close the database, stop the
//     ephemeral instance, exit 0. Steps run in that order, each after the previous one has
//     finished, and each is bounded by the shutdown timeout.
//   - an unhandled failure in a background task started with Go: log it, close the listener,
//     exit 1. The database and ephemeral instance are left to die with the process.
package lifecycle
