package auth

import "context"

// identityKey is a private type for the identity context key.
type identityKey struct{}

// rejectionKey marks a request whose presented token was refused.
type rejectionKey struct{}

// SetIdentity stores the authenticated identity in the context.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity.
// Returns nil if no identity is set (no token, or token rejected).
func IdentityFromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return v
	}
	return nil
}

// SetRejection records why a presented bearer token was refused.
func SetRejection(ctx context.Context, reason string) context.Context {
	return context.WithValue(ctx, rejectionKey{}, reason)
}

// RejectionFromContext returns the reason recorded by SetRejection, or an
// empty string when no token was rejected.
func RejectionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(rejectionKey{}).(string); ok {
		return v
	}
	return ""
}
