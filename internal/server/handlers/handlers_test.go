package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	running bool
	err     error
}

func (s stubChecker) IsDatabaseRunning(ctx context.Context) (bool, error) {
	return s.running, s.err
}

func TestHandleHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("got %d %q, want 200 OK", rr.Code, rr.Body.String())
	}
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name     string
		checker  stubChecker
		wantCode int
	}{
		{"database up", stubChecker{running: true}, http.StatusOK},
		{"database error", stubChecker{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
		{"database not running", stubChecker{running: false}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			HandleReadiness(tt.checker)(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rr.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantCode)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
		})
	}
}

func TestHandleVersion(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleVersion("v1.2.3", "2026-01-01T00:00:00Z", "run-1")(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	var got VersionResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	want := VersionResponse{Version: "v1.2.3", BuildTime: "2026-01-01T00:00:00Z", Service: "mern-testing-server", InstanceID: "run-1"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
