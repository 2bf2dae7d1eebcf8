package auth

import "context"

type ctxKey int

const usernameKey ctxKey = 1

// WithUsername returns a context carrying the authenticated username.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// Username extracts the authenticated username from the context, or "" if
// the request was not authenticated.
func Username(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey).(string); ok {
		return v
	}
	return ""
}
