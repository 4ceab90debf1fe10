package timeout

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/taskguard/taskctx"
)

// deadlineKey is the taskctx key under which the governing deadline for
// the enclosing chain of Execute calls is recorded, so a nested Execute
// (or any other wrapper sharing the same ctx) can discover how much
// budget an outer caller already committed to.
const deadlineKey = "timeout.deadline"

// Config configures a Timeout.
type Config struct {
	// Duration is the maximum time allotted to the operation. Default: 30s.
	Duration time.Duration
}

func (c *Config) applyDefaults() {
	if c.Duration <= 0 {
		c.Duration = 30 * time.Second
	}
}

// Timeout bounds an operation's execution time.
type Timeout struct {
	cfg Config
}

// New creates a Timeout from cfg, applying defaults to unset fields.
func New(cfg Config) *Timeout {
	cfg.applyDefaults()
	return &Timeout{cfg: cfg}
}

// Execute runs op with a deadline of cfg.Duration. op runs in its own
// goroutine so that Execute can return as soon as the deadline elapses;
// it does not stop op from continuing to run afterward, and the result
// of such a late completion is discarded (the done channel is buffered
// so the goroutine is never leaked waiting to send).
//
// Deadlines compose by taking the minimum when nested: if ctx is already
// governed by a tighter deadline than cfg.Duration (whether set by an
// enclosing Execute or by a plain context.WithDeadline caller), that
// tighter deadline wins and is left untouched rather than pushed out.
// The deadline that ends up governing is recorded on ctx's taskctx.Context
// under deadlineKey, so Remaining can report it to callers nested deeper
// in the same chain without each one re-deriving it from ctx.Deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	candidate := time.Now().Add(t.cfg.Duration)
	if existing, ok := ctx.Deadline(); ok && existing.Before(candidate) {
		candidate = existing
	}

	tc := taskctx.MustFromContext(ctx).With(deadlineKey, candidate)
	ctx = taskctx.WithContext(ctx, tc)

	ctx, cancel := context.WithDeadline(ctx, candidate)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrDeadlineExceeded
		}
		return ctx.Err()
	}
}

// Config returns the timeout's effective configuration.
func (t *Timeout) Config() Config {
	return t.cfg
}

// Execute is a convenience function for a one-shot timeout without
// constructing a Timeout value.
func Execute(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	return New(Config{Duration: d}).Execute(ctx, op)
}

// Remaining reports how much time is left before the deadline governing
// ctx's chain of Execute calls, and whether one has been recorded at
// all. A wrapper nested inside an Execute'd operation can call this to
// decide whether it is worth attempting more work (e.g. another retry
// attempt) instead of discovering the deadline only when it fires.
func Remaining(ctx context.Context) (time.Duration, bool) {
	tc, ok := taskctx.FromContext(ctx)
	if !ok {
		return 0, false
	}
	v, ok := tc.Value(deadlineKey)
	if !ok {
		return 0, false
	}
	deadline, ok := v.(time.Time)
	if !ok {
		return 0, false
	}
	return time.Until(deadline), true
}
