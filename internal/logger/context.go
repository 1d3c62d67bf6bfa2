package logger

import "context"

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stamps the request id onto the context so handlers and the
// request logger report the same id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stamped by WithRequestID, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
