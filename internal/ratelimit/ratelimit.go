// Package ratelimit throttles the public verification endpoint. Keys
// are client IPs; authenticated API routes are not limited here.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Store counts requests per key over a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
