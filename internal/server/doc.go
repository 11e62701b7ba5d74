// Package server provides the HTTP application started by the lifecycle orchestrator.
//
// the server is configured through environment variables
// (see internal/config/config.go for details)
//
// The package registers the infrastructure routes
//   - /health/live and /health/ready
//   - /version
//   - /metrics (prometheus)
//
// middleware is in internal/server/middleware
package server
