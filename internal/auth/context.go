package auth

import "context"

// context key type for storing auth claims in context
type claimsContextKey struct{}

// NewContext returns ctx carrying the verified claims.
func NewContext(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// FromContext extracts auth claims from the context, if present.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return c, ok && c != nil
}
