package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextCallerKey ctxKey = "callerID"

// CallerIDFromContext returns the authenticated caller id, or 0 when the request is anonymous.
func CallerIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if callerID, ok := ctx.Value(ContextCallerKey).(int64); ok {
		return callerID
	}
	return 0
}

func ContextWithCallerID(ctx context.Context, callerID int64) context.Context {
	return context.WithValue(ctx, ContextCallerKey, callerID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
