// Package response provides helper functions for sending HTTP responses from the server's handlers and middleware.
package response

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mern-testing/server/internal/logger"
)

// ErrorResponse is the JSON body returned for failed requests
type ErrorResponse struct {

	// The HTTP method used to make the request e.g. GET, POST, etc
	HTTPMethod string `json:"httpMethod"`

	// The URI that was requested
	RequestURI string `json:"requestUri"`

	// The HTTP status code returned
	StatusCode int `json:"statusCode"`

	// A standard short description corresponding to the HTTP status code
	StatusCodeText string `json:"statusCodeText"`

	// A longer description with additional information
	StatusCodeMessage string `json:"statusCodeMessage,omitempty"`

	// The request id assigned by the RequestID middleware
	RequestID string `json:"requestId,omitempty"`

	// The DateTime corresponding to the error occurring
	ErrorDateTime string `json:"errorDateTime"`
}

// RespondWithError sends an ErrorResponse for statusCode.
//
// message is returned to the client, so it must not contain internal details.
// err (optional) is only logged.
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	body := ErrorResponse{
		HTTPMethod:        r.Method,
		RequestURI:        r.URL.RequestURI(),
		StatusCode:        statusCode,
		StatusCodeText:    http.StatusText(statusCode),
		StatusCodeMessage: message,
		RequestID:         middleware.GetReqID(r.Context()),
		ErrorDateTime:     time.Now().UTC().Format(time.RFC3339),
	}

	reqLogger := logger.ContextRequestLogger(r.Context())
	attrs := []any{
		slog.Int("status_code", statusCode),
		slog.String("message", message),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	reqLogger.Warn("Request failed", attrs...)

	RespondWithJSONPayload(w, statusCode, body)
}

// RespondTooLarge rejects a request whose body of size bytes exceeds maxBytes (413)
func RespondTooLarge(w http.ResponseWriter, r *http.Request, size, maxBytes int64) {
	RespondWithError(w, r, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Request body size (%d bytes) exceeds maximum allowed size (%d bytes)", size, maxBytes),
		nil,
	)
}

// RespondRateLimited rejects a request over the rate limit (429). Retry-After is waitSeconds
// rounded up, and at least 1.
func RespondRateLimited(w http.ResponseWriter, r *http.Request, waitSeconds float64) {
	retryAfter := int(math.Ceil(waitSeconds))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	RespondWithError(w, r, http.StatusTooManyRequests, "Too many requests. Please try again later.", nil)
}

// RespondWithJSONPayload sends a JSON response with the given status code
func RespondWithJSONPayload(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// If encoding fails, log it but don't try to send another response
			// (headers are already written)
			slog.Error("Failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}
