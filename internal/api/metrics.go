package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/saromerop2/API-de-colegio/internal/infrastructure/database"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "schoolauth"

// metrics holds the Prometheus collectors exposed on GET /metrics.
type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authEvents      *prometheus.CounterVec
}

// newMetrics creates the collectors and registers them with registry,
// together with Go runtime, process and (when db is set) connection pool stats.
func newMetrics(registry *prometheus.Registry, db *database.DB) (*metrics, error) {
	m := &metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		authEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "auth_events_total",
				Help:      "Authentication and authorization outcomes",
			},
			[]string{"event", "outcome"},
		),
	}

	cs := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.authEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if db != nil {
		cs = append(cs, collectors.NewDBStatsCollector(db.DB.DB, string(db.Dialect())))
	}

	for _, c := range cs {
		if err := registry.Register(c); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by New
		}
	}
	return m, nil
}

// authEvent counts an authentication or authorization outcome.
func (m *metrics) authEvent(event, outcome string) {
	m.authEvents.WithLabelValues(event, outcome).Inc()
}

// metricsMiddleware records request counts and latency per route pattern.
// The pattern is read after routing so /users/{id}/role stays one series.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		s.metrics.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		s.metrics.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
