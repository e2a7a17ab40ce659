package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhuss/feynmind/pkg/api"
)

// Access is what a policy rule demands of a request.
type Access int

const (
	// PermitAll lets the request through with or without an identity.
	PermitAll Access = iota

	// Authenticated requires a verified identity in the context.
	Authenticated
)

// Rule maps a path pattern to an access requirement. A pattern ending in
// "/" matches that subtree (and the bare path without the slash); any other
// pattern matches exactly.
type Rule struct {
	Pattern string
	Access  Access
}

func (r Rule) matches(path string) bool {
	if strings.HasSuffix(r.Pattern, "/") {
		return strings.HasPrefix(path, r.Pattern) || path == strings.TrimSuffix(r.Pattern, "/")
	}
	return path == r.Pattern
}

// DefaultRules returns the route classification of the backend: the
// authentication endpoints, the error path and the operational endpoints are
// public; everything else is protected. An empty metricsPath is skipped.
func DefaultRules(metricsPath string) []Rule {
	rules := []Rule{
		{Pattern: "/api/auth/", Access: PermitAll},
		{Pattern: "/error", Access: PermitAll},
		{Pattern: "/healthz", Access: PermitAll},
	}
	if metricsPath != "" {
		rules = append(rules, Rule{Pattern: metricsPath, Access: PermitAll})
	}
	return append(rules, Rule{Pattern: "/", Access: Authenticated})
}

// Policy evaluates ordered rules; the first match wins. A path no rule
// matches is protected.
type Policy struct {
	rules []Rule
	realm string
}

// NewPolicy creates a policy with the given realm (used in the
// WWW-Authenticate challenge) and rules.
func NewPolicy(realm string, rules []Rule) *Policy {
	return &Policy{rules: rules, realm: realm}
}

// Evaluate returns the access requirement for path.
func (p *Policy) Evaluate(path string) Access {
	for _, rule := range p.rules {
		if rule.matches(path) {
			return rule.Access
		}
	}
	return Authenticated
}

// Middleware enforces the policy. Requests to protected paths without an
// identity are answered with 401 and never reach next.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.Evaluate(r.URL.Path) == Authenticated && IdentityFromContext(r.Context()) == nil {
			p.unauthorized(w, RejectionFromContext(r.Context()) != "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Policy) unauthorized(w http.ResponseWriter, tokenRejected bool) {
	challenge := fmt.Sprintf("Bearer realm=%q", p.realm)
	if tokenRejected {
		challenge += `, error="invalid_token"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(api.NewUnauthenticatedError().Response())
}
