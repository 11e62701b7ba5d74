// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the server's collectors. Each instance owns its registry so tests
// can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	DatabaseUp            prometheus.Gauge
	DatabaseDisconnects   prometheus.Counter
	DatabaseErrors        prometheus.Counter
	LifecyclePhase        *prometheus.GaugeVec
	UnhandledFailures     prometheus.Counter
	ShutdownStepDurations *prometheus.HistogramVec
	HTTPRequests          *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DatabaseUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "database_up",
			Help: "1 when the last database health probe succeeded",
		}),
		DatabaseDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "database_disconnects_total",
			Help: "Number of times the database connection was observed going away",
		}),
		DatabaseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Number of failed database health probes",
		}),
		LifecyclePhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lifecycle_phase",
			Help: "1 for the lifecycle phase the server is currently in",
		}, []string{"phase"}),
		UnhandledFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unhandled_failures_total",
			Help: "Background task failures that terminated the process",
		}),
		ShutdownStepDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shutdown_step_duration_seconds",
			Help:    "Duration of each graceful shutdown step",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30},
		}, []string{"step"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.DatabaseUp,
		m.DatabaseDisconnects,
		m.DatabaseErrors,
		m.LifecyclePhase,
		m.UnhandledFailures,
		m.ShutdownStepDurations,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

// SetPhase marks phase as the current lifecycle phase and clears the others
func (m *Metrics) SetPhase(phase string, all []string) {
	for _, p := range all {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.LifecyclePhase.WithLabelValues(p).Set(v)
	}
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency, labelled by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
