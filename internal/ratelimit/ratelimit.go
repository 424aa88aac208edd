// Package ratelimit implements fixed-window request counting keyed by
// client identity and endpoint scope. Backends are interchangeable:
// an in-process sharded map for single-instance deployments, a durable
// database table that survives restarts, and Redis for multi-instance
// sharing. Selection is an operating-mode decision made at startup.
package ratelimit

import (
	"context"
	"time"
)

// Config is one named preset: a window length and the number of
// requests admitted inside it.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Result is the outcome of a single check. ResetAt is when the current
// window ends; on a denied request Retry-After derives from it.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Backend counts a request against the window for key and reports
// whether it is admitted. Implementations must make the
// read-check-write cycle atomic: two racing requests on the same window
// must not both slip past the limit. A backend error means the caller
// should fail open.
type Backend interface {
	Check(ctx context.Context, key string, cfg Config) (Result, error)
}

// windowExpired applies the boundary rule: a check at exactly the reset
// instant belongs to the new window, not the old one.
func windowExpired(now, resetAt time.Time) bool {
	return !now.Before(resetAt)
}

func outcome(count, max int) (allowed bool, remaining int) {
	allowed = count <= max
	remaining = max - count
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}
