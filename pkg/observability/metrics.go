// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the feynmind backend.
package observability

import "github.com/prometheus/client_golang/prometheus"

// TutorBuckets defines histogram buckets suited for generative model
// latencies, ranging from 100ms to 120s.
var TutorBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// UploadSizeBuckets spans 1KiB to 64MiB.
var UploadSizeBuckets = prometheus.ExponentialBuckets(1024, 4, 9)

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feynmind_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feynmind_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RequestsInFlight tracks requests currently being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feynmind_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// LoginTotal counts login attempts by outcome
	// (success, invalid_credentials, store_unavailable, throttled).
	LoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feynmind_auth_login_total",
			Help: "Login attempts",
		},
		[]string{"outcome"},
	)

	// SignupTotal counts registrations by outcome
	// (success, duplicate, invalid, store_unavailable).
	SignupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feynmind_auth_signup_total",
			Help: "Signup attempts",
		},
		[]string{"outcome"},
	)

	// TokenRejectionsTotal counts bearer tokens the request gate refused,
	// by reason (malformed, invalid_signature, expired).
	TokenRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feynmind_auth_token_rejections_total",
			Help: "Rejected bearer tokens",
		},
		[]string{"reason"},
	)

	// RateLimitRejectedTotal counts login attempts rejected by the throttle.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feynmind_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)

	// TutorRequestsTotal counts requests sent to the tutoring backend.
	TutorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feynmind_tutor_requests_total",
			Help: "Tutor backend requests",
		},
		[]string{"model", "status"},
	)

	// TutorLatency records tutoring backend latency in seconds.
	TutorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feynmind_tutor_latency_seconds",
			Help:    "Tutor backend latency",
			Buckets: TutorBuckets,
		},
		[]string{"model"},
	)

	// DocumentUploadsTotal counts document uploads by outcome.
	DocumentUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feynmind_document_uploads_total",
			Help: "Document uploads",
		},
		[]string{"outcome"},
	)

	// DocumentUploadBytes records the size of accepted uploads.
	DocumentUploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feynmind_document_upload_bytes",
			Help:    "Uploaded document size",
			Buckets: UploadSizeBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		LoginTotal,
		SignupTotal,
		TokenRejectionsTotal,
		RateLimitRejectedTotal,
		TutorRequestsTotal,
		TutorLatency,
		DocumentUploadsTotal,
		DocumentUploadBytes,
	)
}
