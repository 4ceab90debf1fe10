package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/taskguard/storage"
)

// FixedWindow is a named, storage-backed fixed window limiter: limit
// requests per contiguous period, first-request-aligned (the window starts
// on the first request seen, not on a wall-clock boundary).
type FixedWindow struct {
	store  storage.RateLimiterStore
	name   string
	cfg    config
	limit  int64
	period time.Duration

	mu      sync.Mutex
	count   int64
	resetAt time.Time
}

// NewFixedWindow creates a fixed window limiter named name, allowing limit
// requests per period.
func NewFixedWindow(store storage.RateLimiterStore, name string, limit int, period time.Duration, opts ...Option) *FixedWindow {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &FixedWindow{
		store:  store,
		name:   name,
		cfg:    cfg,
		limit:  int64(limit),
		period: period,
	}
}

// TryAcquire attempts to admit one request into the current window without
// waiting.
func (w *FixedWindow) TryAcquire(ctx context.Context) (bool, time.Duration, error) {
	granted, count, resetAt, err := w.store.ConsumeFixedWindow(ctx, w.name, w.period, w.limit, time.Now())
	if err != nil {
		if errors.Is(err, storage.ErrStorageUnavailable) && w.cfg.failOpen {
			return true, 0, nil
		}
		return false, 0, err
	}

	w.mu.Lock()
	w.count = count
	w.resetAt = resetAt
	w.mu.Unlock()

	if granted {
		return true, 0, nil
	}
	return false, time.Until(resetAt), nil
}

// Execute runs op if admitted by the current window. See TokenBucket.Execute
// for the wait semantics.
func (w *FixedWindow) Execute(ctx context.Context, wait bool, op func(context.Context) error) error {
	granted, retryAfter, err := w.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if granted {
		return op(ctx)
	}
	if !wait {
		return ErrRateLimited
	}

	if retryAfter > w.cfg.maxWait {
		retryAfter = w.cfg.maxWait
	}
	if retryAfter < 0 {
		retryAfter = 0
	}

	timer := time.NewTimer(retryAfter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	granted, _, err = w.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return ErrMaxWaitExceeded
	}
	return op(ctx)
}

// Capacity reports the limiter's configured limit and the last observed
// count/reset values (see TokenBucket.Capacity for the distributed caveat).
func (w *FixedWindow) Capacity() (limit int64, remaining int64, resetAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.limit - w.count
	if r < 0 {
		r = 0
	}
	return w.limit, r, w.resetAt
}
