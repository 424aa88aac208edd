package ratelimit

import (
	"context"
	"time"

	"github.com/swiftfix/backoffice/internal/domain"
)

// WindowStore is the durable counter table. Increment must be a single
// conditional read-modify-write: bump the live window, or reset it to
// count=1 when now has reached the stored reset time. The repository
// layer implements it inside a transaction.
type WindowStore interface {
	Increment(key string, now time.Time, window time.Duration) (*domain.RateLimitWindow, error)
	DeleteExpired(now time.Time) (int64, error)
}

// StoreBackend persists windows in the relational store. It survives
// process restarts and can be shared by multiple server instances
// pointing at the same database. Errors propagate to the caller, which
// fails open rather than blocking traffic during a storage outage.
type StoreBackend struct {
	store WindowStore
}

func NewStoreBackend(store WindowStore) *StoreBackend {
	return &StoreBackend{store: store}
}

func (b *StoreBackend) Check(_ context.Context, key string, cfg Config) (Result, error) {
	now := time.Now()
	w, err := b.store.Increment(key, now, cfg.Window)
	if err != nil {
		return Result{}, err
	}
	allowed, remaining := outcome(w.Count, cfg.MaxRequests)
	return Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(w.ResetTime),
	}, nil
}

// Sweep removes rows whose window elapsed with no refreshing request.
func (b *StoreBackend) Sweep(now time.Time) (int64, error) {
	return b.store.DeleteExpired(now)
}
