// Package handlers provides general infrastructure HTTP handlers
// (liveness, readiness, version).
package handlers
