// Package database owns the PostgreSQL connection used by the server.
//
// Connect builds a pgx pool from the server configuration and verifies it with a ping.
// The returned Connection watches the pool in the background and publishes two events to
// subscribers: Disconnected, when a previously healthy pool stops answering, and Error for every
// failed probe. The events are informational; pgxpool re-dials on its own and nothing here
// tries to reconnect.
//
// Schema changes live in migrations/ and are applied with goose (see Migrate).
// Queries follows the layout of sqlc generated code.
package database
