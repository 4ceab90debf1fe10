package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/taskguard/storage"
)

// TokenBucket is a named, storage-backed token bucket limiter. Parameters
// are limit tokens per period; capacity equals limit and the refill rate is
// limit/period tokens per second.
type TokenBucket struct {
	store  storage.RateLimiterStore
	name   string
	cfg    config
	limit  float64
	rate   float64
	period time.Duration

	mu        sync.Mutex
	remaining float64
	resetAt   time.Time
}

// NewTokenBucket creates a token bucket named name, allowing limit requests
// per period.
func NewTokenBucket(store storage.RateLimiterStore, name string, limit int, period time.Duration, opts ...Option) *TokenBucket {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &TokenBucket{
		store:     store,
		name:      name,
		cfg:       cfg,
		limit:     float64(limit),
		rate:      float64(limit) / period.Seconds(),
		period:    period,
		remaining: float64(limit),
	}
}

// TryAcquire attempts to consume one token without waiting.
func (b *TokenBucket) TryAcquire(ctx context.Context) (bool, time.Duration, error) {
	return b.tryAcquireN(ctx, 1)
}

func (b *TokenBucket) tryAcquireN(ctx context.Context, n float64) (bool, time.Duration, error) {
	granted, remaining, retryAfter, err := b.store.ConsumeTokenBucket(ctx, b.name, b.limit, b.rate, time.Now(), n)
	if err != nil {
		if errors.Is(err, storage.ErrStorageUnavailable) && b.cfg.failOpen {
			return true, 0, nil
		}
		return false, 0, err
	}

	b.mu.Lock()
	b.remaining = remaining
	b.resetAt = time.Now().Add(retryAfter)
	b.mu.Unlock()

	return granted, retryAfter, nil
}

// Execute runs op if a token is available. If wait is false and the
// request is denied, it returns ErrRateLimited immediately. If wait is
// true, it sleeps up to retryAfter (capped by MaxWait) and retries once;
// if still denied, it returns ErrMaxWaitExceeded. Cancellation during the
// wait returns ctx.Err().
func (b *TokenBucket) Execute(ctx context.Context, wait bool, op func(context.Context) error) error {
	granted, retryAfter, err := b.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if granted {
		return op(ctx)
	}
	if !wait {
		return ErrRateLimited
	}

	if retryAfter > b.cfg.maxWait {
		retryAfter = b.cfg.maxWait
	}

	timer := time.NewTimer(retryAfter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	granted, _, err = b.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return ErrMaxWaitExceeded
	}
	return op(ctx)
}

// Capacity reports the limiter's configured limit and the last observed
// remaining/reset values. Under a distributed store, remaining/resetAt are
// a point-in-time snapshot from this process's most recent call, not a
// live read of shared state.
func (b *TokenBucket) Capacity() (limit int64, remaining int64, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(b.limit), int64(b.remaining), b.resetAt
}
