package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry.
func TestMetricsRegistered(t *testing.T) {
	// Vector metrics only appear after first observation; seed them.
	RequestsTotal.WithLabelValues("GET", "2xx", "/healthz").Inc()
	RequestDuration.WithLabelValues("GET", "/healthz").Observe(0.1)
	LoginTotal.WithLabelValues("success").Inc()
	SignupTotal.WithLabelValues("success").Inc()
	TokenRejectionsTotal.WithLabelValues("expired").Inc()
	RateLimitRejectedTotal.Inc()
	TutorRequestsTotal.WithLabelValues("test", "ok").Inc()
	TutorLatency.WithLabelValues("test").Observe(0.1)
	DocumentUploadsTotal.WithLabelValues("success").Inc()
	DocumentUploadBytes.Observe(2048)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"feynmind_requests_total":              false,
		"feynmind_request_duration_seconds":    false,
		"feynmind_requests_in_flight":          false,
		"feynmind_auth_login_total":            false,
		"feynmind_auth_signup_total":           false,
		"feynmind_auth_token_rejections_total": false,
		"feynmind_ratelimit_rejected_total":    false,
		"feynmind_tutor_requests_total":        false,
		"feynmind_tutor_latency_seconds":       false,
		"feynmind_document_uploads_total":      false,
		"feynmind_document_upload_bytes":       false,
	}

	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestMiddlewareRecordsRequestCount(t *testing.T) {
	before := counterValue(t, RequestsTotal, "GET", "2xx", "/api/documents")

	handler := MetricsMiddleware([]string{"/api/documents"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/documents", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	after := counterValue(t, RequestsTotal, "GET", "2xx", "/api/documents")
	if after-before != 1 {
		t.Errorf("expected request count to increase by 1, got delta=%f", after-before)
	}
}

func TestMiddlewareUnknownRouteLabel(t *testing.T) {
	before := counterValue(t, RequestsTotal, "GET", "4xx", UnmatchedRoute)

	handler := MetricsMiddleware([]string{"/healthz"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	req := httptest.NewRequest("GET", "/wp-admin/setup.php", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	after := counterValue(t, RequestsTotal, "GET", "4xx", UnmatchedRoute)
	if after-before != 1 {
		t.Errorf("expected unmatched count to increase by 1, got delta=%f", after-before)
	}
}

func TestMiddlewareRecordsDuration(t *testing.T) {
	before := histogramCount(t, RequestDuration, "POST", "/api/auth/login")

	handler := MetricsMiddleware([]string{"/api/auth/login"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	after := histogramCount(t, RequestDuration, "POST", "/api/auth/login")
	if after-before != 1 {
		t.Errorf("expected histogram sample count to increase by 1, got delta=%d", after-before)
	}
}

func TestMiddlewareInFlightGauge(t *testing.T) {
	baseline := gaugeValue(t, RequestsInFlight)

	var during float64
	handler := MetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = gaugeValue(t, RequestsInFlight)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	if during != baseline+1 {
		t.Errorf("expected in-flight gauge=%f during request, got %f", baseline+1, during)
	}
	if after := gaugeValue(t, RequestsInFlight); after != baseline {
		t.Errorf("expected in-flight gauge=%f after request, got %f", baseline, after)
	}
}

func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "POST", "4xx", "/api/auth/signup")

	handler := MetricsMiddleware([]string{"/api/auth/signup"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest("POST", "/api/auth/signup", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	after := counterValue(t, RequestsTotal, "POST", "4xx", "/api/auth/signup")
	if after-before != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", after-before)
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
