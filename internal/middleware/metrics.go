package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "route", "status"},
	)

	httpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_requests_active",
			Help: "Number of active HTTP requests",
		},
		[]string{"service", "method", "route"},
	)
)

// shouldSkipMetrics returns true if the path should not be recorded.
func shouldSkipMetrics(path string) bool {
	skipPaths := []string{"/metrics", "/health", "/ping"}
	for _, skip := range skipPaths {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}
	return false
}

// Metrics returns a middleware that records Prometheus HTTP metrics.
func Metrics(serviceName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipMetrics(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			// Route pattern from chi so labels stay low-cardinality.
			routePattern := chi.RouteContext(r.Context()).RoutePattern()
			if routePattern == "" {
				routePattern = r.URL.Path
			}

			inFlight := httpRequestsInFlight.WithLabelValues(serviceName, r.Method, routePattern)
			inFlight.Inc()
			defer inFlight.Dec()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			status := strconv.Itoa(ww.statusCode)
			httpRequestsTotal.WithLabelValues(serviceName, r.Method, routePattern, status).Inc()
			httpRequestDuration.WithLabelValues(serviceName, r.Method, routePattern, status).Observe(time.Since(start).Seconds())
		})
	}
}
