package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// Config configures a Retry.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the
	// initial one). Default: 3.
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Default: 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Default: 30s.
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0.
	Multiplier float64

	// Strategy is the backoff strategy. Default: BackoffExponential.
	Strategy BackoffStrategy

	// JitterFraction scales how much computed delays are randomized, in
	// [0, 1]. 0 disables jitter. A value j perturbs delay to
	// delay*(1-j+2*j*random01()), so the result can land anywhere from
	// delay*(1-j) to delay*(1+j) — symmetric around the unjittered delay,
	// not purely additive. Values outside [0, 1] are clamped.
	JitterFraction float64

	// RetryIf determines if an error should trigger a retry. Default:
	// all non-nil errors trigger a retry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt, after the delay has
	// been computed but before the wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = func(err error) bool { return err != nil }
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	if c.JitterFraction > 1 {
		c.JitterFraction = 1
	}
}

// Retry runs an operation with backoff between failed attempts.
type Retry struct {
	cfg Config
}

// New creates a Retry from cfg, applying defaults to unset fields.
func New(cfg Config) *Retry {
	cfg.applyDefaults()
	return &Retry{cfg: cfg}
}

// Execute runs op, retrying on failure per the configured strategy. If
// ctx carries a deadline and the delay before the next attempt would run
// past it, Execute returns the last error immediately instead of sleeping
// past the deadline only to fail anyway. If ctx is cancelled while
// waiting, Execute returns ErrCancelled wrapping ctx.Err().
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.cfg.RetryIf(err) {
			return err
		}
		if attempt >= r.cfg.MaxAttempts {
			break
		}

		delay := r.calculateDelay(attempt)

		if deadline, ok := ctx.Deadline(); ok {
			if time.Until(deadline) < delay {
				return lastErr
			}
		}

		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return errors.Join(ErrCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	return lastErr
}

func (r *Retry) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.cfg.Strategy {
	case BackoffConstant:
		delay = r.cfg.InitialDelay
	case BackoffLinear:
		delay = r.cfg.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		multiplier := math.Pow(r.cfg.Multiplier, float64(attempt-1))
		delay = time.Duration(float64(r.cfg.InitialDelay) * multiplier)
	}

	if delay > r.cfg.MaxDelay {
		delay = r.cfg.MaxDelay
	}

	if r.cfg.JitterFraction > 0 && delay > 0 {
		j := r.cfg.JitterFraction
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		factor := 1 - j + 2*j*rand.Float64()
		delay = time.Duration(float64(delay) * factor)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// Config returns the retry's effective configuration.
func (r *Retry) Config() Config {
	return r.cfg
}
