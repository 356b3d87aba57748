// ABOUTME: Request-context plumbing for the verified caller identity.
// ABOUTME: The caller ID set here is the only identity the dispatcher ever sees.

package auth

import "context"

type contextKey struct{}

// WithCaller returns a context carrying the verified caller ID.
func WithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, contextKey{}, callerID)
}

// CallerFrom extracts the verified caller ID from the context. The second
// return is false when no authenticated caller is attached.
func CallerFrom(ctx context.Context) (string, bool) {
	callerID, ok := ctx.Value(contextKey{}).(string)
	return callerID, ok && callerID != ""
}
