package logger

import "context"

// ctxKey is unexported so no other package can collide with our
// context entries.
type ctxKey struct{}

// WithRequestID stores a request ID in ctx for log correlation across
// the admin request path.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request ID stored in ctx, or "" when the
// context never passed through the admin middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
