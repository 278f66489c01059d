// Package requestcontext provides HTTP-independent accessors for
// request-scoped values: the acting staff member, the request time, the
// request ID and the client IP. Middleware sets them; services read them.
// Keeping this package free of net/http lets services depend on identity
// and clock without pulling in transport code.
//
// Services must use requestcontext.Now(ctx) instead of time.Now() on
// domain paths so tests can pin the clock with WithTime.
package requestcontext

import (
	"context"
	"time"

	id "labcert/pkg/domain"
)

type (
	actorIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
)

// ActorID retrieves the authenticated staff user ID from the context.
// Returns the zero value if not set (unauthenticated paths).
func ActorID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(actorIDKey{}).(id.UserID); ok {
		return v
	}
	return id.UserID{}
}

// WithActorID injects the acting staff user ID into the context.
func WithActorID(ctx context.Context, actor id.UserID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientIP injects the client IP into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time. Used by the request-time middleware and
// by service tests that need a deterministic clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
