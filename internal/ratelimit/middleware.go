package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"labcert/pkg/platform/httputil"
	"labcert/pkg/requestcontext"
)

// Middleware applies per-IP limits to public routes.
type Middleware struct {
	store    Store
	limit    int
	window   time.Duration
	logger   *slog.Logger
	disabled bool
}

// Option configures the middleware.
type Option func(*Middleware)

// WithDisabled turns limiting off (tests, demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

// NewMiddleware constructs the limiter middleware.
func NewMiddleware(store Store, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{store: store, limit: limit, window: window, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit throttles by client IP. Store failures let the request through:
// verification availability beats throttling precision.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		result, err := m.store.Allow(ctx, ip, m.limit, m.window)
		if err != nil {
			m.logger.Error("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		addHeaders(w, result)
		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "Too many verification requests from this address. Please try again later.",
				"retry_after": result.RetryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
