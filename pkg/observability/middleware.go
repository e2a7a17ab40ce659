package observability

import (
	"net/http"
	"strconv"
	"time"
)

// UnmatchedRoute is the route label for paths outside the known set. It
// keeps label cardinality bounded when clients probe arbitrary URLs.
const UnmatchedRoute = "unmatched"

// MetricsMiddleware returns middleware that records request metrics.
//
// It captures:
//   - feynmind_requests_total (counter): method, status class, and route labels
//   - feynmind_request_duration_seconds (histogram): method and route labels
//   - feynmind_requests_in_flight (gauge)
//
// The route label is the request path when it is one of routes, otherwise
// UnmatchedRoute.
func MetricsMiddleware(routes []string) func(http.Handler) http.Handler {
	known := make(map[string]bool, len(routes))
	for _, r := range routes {
		known[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			RequestsInFlight.Inc()
			defer RequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := UnmatchedRoute
			if known[r.URL.Path] {
				route = r.URL.Path
			}

			// Build a status class label like "2xx", "4xx", "5xx".
			statusStr := strconv.Itoa(sw.status/100) + "xx"

			RequestsTotal.WithLabelValues(r.Method, statusStr, route).Inc()
			RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
