package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPolicy_Evaluate(t *testing.T) {
	p := NewPolicy("feynmind", DefaultRules("/metrics"))

	public := []string{
		"/api/auth/login",
		"/api/auth/signup",
		"/api/auth",
		"/api/auth/anything/deeper",
		"/error",
		"/healthz",
		"/metrics",
	}
	for _, path := range public {
		if got := p.Evaluate(path); got != PermitAll {
			t.Errorf("Evaluate(%q) = %d, want PermitAll", path, got)
		}
	}

	protected := []string{
		"/api/documents",
		"/api/documents/upload",
		"/api/study/analyze",
		"/api/authx",
		"/errors",
		"/",
		"/unknown",
	}
	for _, path := range protected {
		if got := p.Evaluate(path); got != Authenticated {
			t.Errorf("Evaluate(%q) = %d, want Authenticated", path, got)
		}
	}
}

func TestPolicy_NoRulesProtectsEverything(t *testing.T) {
	p := NewPolicy("feynmind", nil)
	if got := p.Evaluate("/api/auth/login"); got != Authenticated {
		t.Errorf("Evaluate with no rules = %d, want Authenticated", got)
	}
}

func TestPolicy_EmptyMetricsPathSkipped(t *testing.T) {
	p := NewPolicy("feynmind", DefaultRules(""))
	if got := p.Evaluate("/metrics"); got != Authenticated {
		t.Errorf("Evaluate(/metrics) with metrics disabled = %d, want Authenticated", got)
	}
}

func TestPolicy_ProtectedWithoutIdentity_401(t *testing.T) {
	p := NewPolicy("feynmind", DefaultRules("/metrics"))
	handler := p.Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/documents", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Bearer realm="feynmind"` {
		t.Errorf("WWW-Authenticate = %q", got)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] != "Unauthorized" {
		t.Errorf("error = %q, want Unauthorized", body["error"])
	}
}

func TestPolicy_RejectedToken_InvalidTokenChallenge(t *testing.T) {
	p := NewPolicy("feynmind", DefaultRules("/metrics"))
	handler := p.Middleware(okHandler())

	req := httptest.NewRequest("GET", "/api/documents", nil)
	req = req.WithContext(SetRejection(req.Context(), "expired"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, `error="invalid_token"`) {
		t.Errorf("WWW-Authenticate = %q, want invalid_token error", got)
	}
	// The reason itself is not disclosed.
	if strings.Contains(rec.Body.String(), "expired") {
		t.Errorf("body discloses rejection reason: %s", rec.Body.String())
	}
}

func TestPolicy_ProtectedWithIdentity_Passes(t *testing.T) {
	p := NewPolicy("feynmind", DefaultRules("/metrics"))
	handler := p.Middleware(okHandler())

	req := httptest.NewRequest("GET", "/api/documents", nil)
	req = req.WithContext(SetIdentity(req.Context(), &Identity{Subject: "a@x.io"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestPolicy_PublicWithRejectedToken_Passes(t *testing.T) {
	p := NewPolicy("feynmind", DefaultRules("/metrics"))
	handler := p.Middleware(okHandler())

	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req = req.WithContext(SetRejection(req.Context(), "malformed"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for public path", rec.Code)
	}
}
