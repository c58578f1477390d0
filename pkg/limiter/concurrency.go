package limiter

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ConcurrencyLimiter bounds the number of in-flight fetches, both globally
// and per host, so the fetcher never exceeds the pool sizes configured by
// spec §4.6/§5 (max_concurrent_fetches, per-host concurrency).
type ConcurrencyLimiter struct {
	global  *semaphore.Weighted
	perHost int64

	mu    sync.Mutex
	hosts map[string]*semaphore.Weighted
}

func NewConcurrencyLimiter(globalLimit, perHostLimit int64) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{
		global:  semaphore.NewWeighted(globalLimit),
		perHost: perHostLimit,
		hosts:   make(map[string]*semaphore.Weighted),
	}
}

// AcquireFn acquires both the global and the host-specific slot, blocking
// until one is free or ctx is cancelled. The returned func releases both.
func (c *ConcurrencyLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	if err := c.global.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	hostSem := c.hostSemaphore(host)
	if err := hostSem.Acquire(ctx, 1); err != nil {
		c.global.Release(1)
		return nil, err
	}

	return func() {
		hostSem.Release(1)
		c.global.Release(1)
	}, nil
}

func (c *ConcurrencyLimiter) hostSemaphore(host string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sem, ok := c.hosts[host]; ok {
		return sem
	}
	sem := semaphore.NewWeighted(c.perHost)
	c.hosts[host] = sem
	return sem
}
