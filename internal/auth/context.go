package auth

import "context"

type ctxKey struct{}

// WithIdentity returns a child context carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFromContext returns the identity attached by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(ctxKey{}).(*Identity)
	return identity, ok && identity != nil
}
