// Package tenant carries the request-scoped identity (user, org, plan)
// resolved from an access token through a context.Context.
package tenant

import "context"

// Identity is the authenticated caller's tenant context.
type Identity struct {
	UserID string
	OrgID  string
	Plan   string
}

type contextKey struct{}

// WithIdentity returns a context carrying identity, for middleware to set
// once per request after verifying the access token.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// FromContext reads the identity set by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}
