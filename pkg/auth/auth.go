package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is an authenticator's verdict on a request.
type AuthDecision int

const (
	// Yes: the credentials verified. Identity is set.
	Yes AuthDecision = iota

	// No: credentials were presented and refused. The request continues
	// without an identity and Policy answers protected routes with 401.
	No

	// Abstain: the request carried no credentials this authenticator reads.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // Decision == Yes
	Err      error     // Decision == No

	// Reason is a low-cardinality label for a No decision, e.g. "expired".
	// It is logged and used as a metric label, never sent to the client.
	Reason string
}

// Identity is the verified caller of one request. It lives only in the
// request context.
type Identity struct {
	// Subject is the caller's email. Never empty.
	Subject string
}

// Authenticator examines request credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, r *http.Request) AuthResult

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	return f(ctx, r)
}

// ErrTooManyRequests is returned by LoginLimiter.Allow.
var ErrTooManyRequests = errors.New("rate limit exceeded")
