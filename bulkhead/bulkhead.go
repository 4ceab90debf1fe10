package bulkhead

import (
	"context"
	"sync"
	"time"
)

// Config configures a Bulkhead.
type Config struct {
	// MaxConcurrent is the number of slots available at once. Default: 10.
	MaxConcurrent int

	// MaxQueueSize bounds how many callers may wait for a slot at once.
	// Default: 0 (no queueing; Acquire fails immediately when full).
	MaxQueueSize int

	// MaxWait is how long a queued caller waits for a slot before giving
	// up with ErrBulkheadTimeout. Ignored if MaxQueueSize is 0.
	// Default: 0 (queueing disabled).
	MaxWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
}

// Bulkhead bounds concurrent operations to a fixed pool of slots, queueing
// excess callers FIFO up to MaxQueueSize before rejecting them.
type Bulkhead struct {
	cfg Config

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
	timedOut  int64
	waiters   []chan struct{}
}

// New creates a Bulkhead from cfg, applying defaults to unset fields.
func New(cfg Config) *Bulkhead {
	cfg.applyDefaults()
	return &Bulkhead{cfg: cfg}
}

// Acquire claims a slot, queueing if none is immediately free and
// MaxQueueSize/MaxWait allow it. Returns ErrBulkheadFull if the queue (or
// queueing itself) is unavailable, ErrBulkheadTimeout if queued but
// MaxWait elapsed, or ctx.Err() if ctx is done first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	b.mu.Lock()
	if b.active < b.cfg.MaxConcurrent {
		b.active++
		if b.active > b.maxActive {
			b.maxActive = b.active
		}
		b.mu.Unlock()
		return nil
	}

	if b.cfg.MaxWait <= 0 || len(b.waiters) >= b.cfg.MaxQueueSize {
		b.rejected++
		b.mu.Unlock()
		return ErrBulkheadFull
	}

	grant := make(chan struct{}, 1)
	b.waiters = append(b.waiters, grant)
	b.mu.Unlock()

	timer := time.NewTimer(b.cfg.MaxWait)
	defer timer.Stop()

	select {
	case <-grant:
		return nil
	case <-timer.C:
		b.abandonWaiter(grant)
		b.mu.Lock()
		b.timedOut++
		b.mu.Unlock()
		return ErrBulkheadTimeout
	case <-ctx.Done():
		b.abandonWaiter(grant)
		return ctx.Err()
	}
}

// abandonWaiter handles a waiter giving up. If grant is still queued, it
// is removed outright. If a concurrent Release already popped it and
// handed off a slot (a race with the timeout/cancellation), that slot is
// drained back and passed on to the next waiter instead of being leaked.
func (b *Bulkhead) abandonWaiter(grant chan struct{}) {
	b.mu.Lock()
	for i, w := range b.waiters {
		if w == grant {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			b.mu.Unlock()
			return
		}
	}
	b.mu.Unlock()

	select {
	case <-grant:
		b.Release()
	default:
	}
}

// Release frees a slot, handing it directly to the longest-waiting
// queued caller if one exists instead of returning it to the open pool.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	if len(b.waiters) > 0 {
		next := b.waiters[0]
		b.waiters = b.waiters[1:]
		next <- struct{}{}
		b.mu.Unlock()
		return
	}
	if b.active > 0 {
		b.active--
	}
	b.mu.Unlock()
}

// Execute runs op within an acquired slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Metrics reports the bulkhead's current utilization.
type Metrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	QueueLength   int
	Rejected      int64
	TimedOut      int64
}

// Metrics returns a snapshot of the bulkhead's current statistics.
func (b *Bulkhead) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Metrics{
		Active:        b.active,
		MaxActive:     b.maxActive,
		Available:     b.cfg.MaxConcurrent - b.active,
		MaxConcurrent: b.cfg.MaxConcurrent,
		QueueLength:   len(b.waiters),
		Rejected:      b.rejected,
		TimedOut:      b.timedOut,
	}
}
