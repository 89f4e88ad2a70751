package middleware

import (
	"net/http"
	"time"
)

// HTTPMetrics records request metrics for completed HTTP requests.
type HTTPMetrics interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// MetricsMiddleware records Prometheus metrics for the API.
type MetricsMiddleware struct {
	metrics HTTPMetrics
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(metrics HTTPMetrics) *MetricsMiddleware {
	return &MetricsMiddleware{
		metrics: metrics,
	}
}

// Metrics is a middleware that records request counts and latencies.
func (m *MetricsMiddleware) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		m.metrics.ObserveHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
