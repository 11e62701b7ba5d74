// Package middleware holds the HTTP middleware shared by every route.
// Rejections are written with the response package so clients always get an ErrorResponse body.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/mern-testing/server/internal/logger"
	"github.com/mern-testing/server/internal/server/response"
)

// MaxRequestSizeHeader advertises the body size limit on every response
const MaxRequestSizeHeader = "X-Max-Request-Size"

var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
}

const hsts = "max-age=31536000; includeSubDomains"

// RequestSizeLimit rejects bodies larger than maxBytes with 413.
//
// A declared Content-Length over the limit is refused before the handler runs. Bodies without
// a (truthful) Content-Length are capped with http.MaxBytesReader, so the handler's read fails instead.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	limit := strconv.FormatInt(maxBytes, 10)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(MaxRequestSizeHeader, limit)

			if r.ContentLength > maxBytes {
				response.RespondTooLarge(w, r, r.ContentLength, maxBytes)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the standard hardening headers. HSTS is left out for local environments
// ("", development, test), which are usually served over plain HTTP.
func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	sendHSTS := !isLocal(environment)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			if sendHSTS {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLocal(environment string) bool {
	switch environment {
	case "", "development", "test":
		return true
	}
	return false
}

// RateLimit applies one token bucket to all requests passing through it.
// requestsPerSecond <= 0 turns the middleware into a pass-through.
func RateLimit(requestsPerSecond int32, burst int32) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Reserve()
			if !res.OK() {
				rejectRateLimited(w, r, 0)
				return
			}
			if delay := res.Delay(); delay > 0 {
				// give the token back, this request is not going to wait for it
				res.Cancel()
				rejectRateLimited(w, r, delay.Seconds())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, waitSeconds float64) {
	logger.ContextWithLogAttrs(r.Context(),
		slog.String("component", "RateLimit"),
		slog.String("remote_addr", r.RemoteAddr),
	)
	response.RespondRateLimited(w, r, waitSeconds)
}
