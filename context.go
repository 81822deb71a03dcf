package coffer

import "context"

type contextKey int

const (
	ctxKeyIdentity contextKey = iota
)

// WithIdentity returns a context carrying the caller identity.
// Use this for standalone mode (without Forge).
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, identity)
}

// IdentityFromContext returns the caller identity set by WithIdentity,
// or the empty string. An empty identity is itself a valid identity
// value holding no implicit rights anywhere.
func IdentityFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyIdentity).(string)
	if !ok {
		return ""
	}
	return v
}
