package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShards = 16

// DefaultSweepInterval is how often the in-memory backend drops expired
// windows when no interval is configured.
const DefaultSweepInterval = 5 * time.Minute

type memoryWindow struct {
	count   int
	resetAt time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

// MemoryBackend is the volatile backend: correct for a single
// long-running process only. Windows live in a sharded map so the
// periodic sweep never holds a lock that blocks unrelated keys.
type MemoryBackend struct {
	shards [memoryShards]*memoryShard
	stop   chan struct{}
	done   chan struct{}
	now    func() time.Time
}

func NewMemoryBackend(sweepInterval time.Duration) *MemoryBackend {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	b := &MemoryBackend{
		stop: make(chan struct{}),
		done: make(chan struct{}),
		now:  time.Now,
	}
	for i := range b.shards {
		b.shards[i] = &memoryShard{windows: make(map[string]*memoryWindow)}
	}
	go b.sweepLoop(sweepInterval)
	return b
}

func (b *MemoryBackend) Check(_ context.Context, key string, cfg Config) (Result, error) {
	now := b.now()
	shard := b.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	w, ok := shard.windows[key]
	if !ok || windowExpired(now, w.resetAt) {
		w = &memoryWindow{count: 1, resetAt: now.Add(cfg.Window)}
		shard.windows[key] = w
	} else {
		w.count++
	}
	allowed, remaining := outcome(w.count, cfg.MaxRequests)
	return Result{Allowed: allowed, Remaining: remaining, ResetAt: w.resetAt}, nil
}

// Stop terminates the sweep goroutine and waits for it to exit.
func (b *MemoryBackend) Stop() {
	close(b.stop)
	<-b.done
}

func (b *MemoryBackend) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return b.shards[h.Sum32()%memoryShards]
}

func (b *MemoryBackend) sweepLoop(interval time.Duration) {
	defer close(b.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.sweep(b.now())
		case <-b.stop:
			return
		}
	}
}

// sweep deletes windows that have elapsed without a refreshing request,
// bounding memory. Each shard is locked only for its own deletions.
func (b *MemoryBackend) sweep(now time.Time) {
	for _, shard := range b.shards {
		shard.mu.Lock()
		for key, w := range shard.windows {
			if windowExpired(now, w.resetAt) {
				delete(shard.windows, key)
			}
		}
		shard.mu.Unlock()
	}
}
