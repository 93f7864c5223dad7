// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
// Tests inject fixed values (notably the request time) to keep time-sensitive
// logic deterministic:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithOperatorID(ctx, operatorID)
package requestcontext

import (
	"context"
	"time"

	id "vaxtrack/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	operatorIDKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyOperatorID  = operatorIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// OperatorID retrieves the authenticated operator from the context.
// Returns the zero value (nil UUID) if not set.
func OperatorID(ctx context.Context) id.OperatorID {
	if operatorID, ok := ctx.Value(ContextKeyOperatorID).(id.OperatorID); ok {
		return operatorID
	}
	return id.OperatorID{}
}

// WithOperatorID injects an operator ID into the context.
func WithOperatorID(ctx context.Context, operatorID id.OperatorID) context.Context {
	return context.WithValue(ctx, ContextKeyOperatorID, operatorID)
}

// RequestID retrieves the correlation ID assigned by middleware, or "".
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time when set, falling back to time.Now.
// Every step of a single workflow invocation observes the same "now", which
// keeps eligibility cutoffs and audit timestamps consistent within a request.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
