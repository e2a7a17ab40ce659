package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/feynmind/pkg/api"
)

// CORSConfig holds the cross-origin policy.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns the policy for the browser frontend: the given
// origins, the usual REST methods, bearer and JSON headers, credentials on.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           30 * time.Minute,
	}
}

// CORS returns middleware that applies cfg.
//
// Preflights (OPTIONS with Origin and Access-Control-Request-Method) are
// answered here and never reach next: 204 when origin, method and headers are
// allowed, 403 otherwise. Cross-origin requests from origins outside the
// allow-list are refused with 403. Same-origin requests and requests without
// an Origin header pass untouched.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")

			if isPreflight(r) {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")

				method := r.Header.Get("Access-Control-Request-Method")
				requested := requestedHeaders(r)
				if !isAllowedOrigin(origin, cfg.AllowedOrigins) ||
					!containsFold(cfg.AllowedMethods, method) ||
					!allHeadersAllowed(requested, cfg.AllowedHeaders) {
					rejectCORS(w)
					return
				}

				setCORSHeaders(h, origin, cfg)
				h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
				if len(requested) > 0 {
					h.Set("Access-Control-Allow-Headers", strings.Join(requested, ", "))
				}
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge.Seconds())))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if isSameOrigin(r, origin) {
				next.ServeHTTP(w, r)
				return
			}

			if !isAllowedOrigin(origin, cfg.AllowedOrigins) {
				rejectCORS(w)
				return
			}

			setCORSHeaders(h, origin, cfg)
			next.ServeHTTP(w, r)
		})
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

// isSameOrigin compares origin against the scheme and host the request was
// addressed to.
func isSameOrigin(r *http.Request, origin string) bool {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return strings.EqualFold(origin, scheme+"://"+r.Host)
}

// setCORSHeaders writes the headers shared by preflight and actual responses.
func setCORSHeaders(h http.Header, origin string, cfg CORSConfig) {
	h.Set("Access-Control-Allow-Origin", origin)
	if cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

func rejectCORS(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(api.NewForbiddenError("Invalid CORS request").Response())
}

func isAllowedOrigin(origin string, allowed []string) bool {
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	return false
}

func requestedHeaders(r *http.Request) []string {
	var out []string
	for _, v := range r.Header.Values("Access-Control-Request-Headers") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func allHeadersAllowed(requested, allowed []string) bool {
	for _, name := range requested {
		if !containsFold(allowed, name) {
			return false
		}
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if v == "*" || strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
