// Package jwt issues and verifies the backend's HS256 bearer tokens and
// provides the authenticator the request gate runs.
//
// Tokens carry only the subject (the user's email), the issue time and the
// expiry. They are never stored server-side: a token is valid iff its
// signature verifies against the process-wide secret and the current time
// is before its expiry.
package jwt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/feynmind/pkg/auth"
)

// TokenLifetime is the fixed validity window of an issued token.
const TokenLifetime = 24 * time.Hour

// MinSecretLength is the shortest accepted signing secret, in bytes.
const MinSecretLength = 32

// Verification failures. Match with errors.Is.
var (
	ErrMalformed        = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
)

// ErrSecretTooShort is returned by NewCodec.
var ErrSecretTooShort = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)

// Codec issues and verifies tokens with one immutable HMAC-SHA256 secret.
// It is safe for concurrent use.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec. The secret is copied.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	return &Codec{secret: append([]byte(nil), secret...)}, nil
}

// Issue signs a token for subject, valid from now for TokenLifetime.
// Times are truncated to whole seconds, the precision of the encoded claims.
func (c *Codec) Issue(subject string, now time.Time) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("issuing token: empty subject")
	}
	iat := now.Truncate(time.Second)
	claims := jwtlib.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwtlib.NewNumericDate(iat),
		ExpiresAt: jwtlib.NewNumericDate(iat.Add(TokenLifetime)),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ExpiresAt returns the expiry Issue assigns to a token issued at now.
func ExpiresAt(now time.Time) time.Time {
	return now.Truncate(time.Second).Add(TokenLifetime)
}

// Verify checks the token's signature and expiry at now and returns its
// subject. The signature is checked first, so a forged token is reported as
// ErrInvalidSignature even when also expired.
func (c *Codec) Verify(token string, now time.Time) (string, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &jwtlib.RegisteredClaims{}, func(*jwtlib.Token) (interface{}, error) {
		return c.secret, nil
	}, c.parserOptions(now)...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenMalformed) && undecodableSignature(token) {
			return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return "", classify(err)
	}

	claims, ok := parsed.Claims.(*jwtlib.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", ErrMalformed
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrMalformed)
	}
	return claims.Subject, nil
}

// parserOptions pins the algorithm and evaluates expiry against now.
func (c *Codec) parserOptions(now time.Time) []jwtlib.ParserOption {
	return []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithStrictDecoding(),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	}
}

// classify maps library errors onto the package's sentinel failures.
func classify(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid),
		errors.Is(err, jwtlib.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwtlib.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwtlib.ErrTokenInvalidClaims):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// undecodableSignature reports whether token has a well-formed header and
// payload but a signature segment that is not strict unpadded base64url.
// Strict decoding rejects non-zero padding bits, so an edit to the final
// character of the signature lands here rather than in signature comparison.
func undecodableSignature(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || !json.Valid(header) {
		return false
	}
	if _, err := base64.RawURLEncoding.DecodeString(parts[1]); err != nil {
		return false
	}
	_, err = base64.RawURLEncoding.Strict().DecodeString(parts[2])
	return err != nil
}

// Reason returns the metric and log label for a Verify error.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "malformed"
	}
}

// BearerAuthenticator verifies "Authorization: Bearer" tokens with a Codec.
type BearerAuthenticator struct {
	codec *Codec
	now   func() time.Time
}

// NewBearerAuthenticator creates an authenticator backed by codec.
func NewBearerAuthenticator(codec *Codec) *BearerAuthenticator {
	return &BearerAuthenticator{codec: codec, now: time.Now}
}

// Authenticate extracts a bearer token from the Authorization header and
// verifies it.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but malformed, forged or expired
//   - Yes: valid token; the identity's subject is the token's subject
func (a *BearerAuthenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenStr == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("%w: empty bearer token", ErrMalformed),
			Reason:   "malformed",
		}
	}

	subject, err := a.codec.Verify(tokenStr, a.now())
	if err != nil {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      err,
			Reason:   Reason(err),
		}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject},
	}
}
