package circuit

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/taskguard/storage"
)

// State represents a circuit breaker state; it is the same representation
// storage.Record persists, re-exported here so callers of this package
// never need to import storage directly for it.
type State = storage.CircuitState

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = storage.CircuitClosed
	// StateOpen means the circuit is blocking all requests.
	StateOpen State = storage.CircuitOpen
	// StateHalfOpen means the circuit is testing if the dependency recovered.
	StateHalfOpen State = storage.CircuitHalfOpen
)

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 5.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays OPEN before admitting
	// a probe. Default: 30 seconds.
	RecoveryTimeout time.Duration

	// HalfOpenMaxProbes is the number of concurrent probes allowed while
	// HALF_OPEN. Default: 1.
	HalfOpenMaxProbes int

	// RecordTTL is how long an idle breaker record is kept by the store.
	// Default: 10 * RecoveryTimeout.
	RecordTTL time.Duration

	// FailClosed determines behavior when the store is unreachable: the
	// default (false) lets the call through as if the circuit were
	// closed; true fails the call with the storage error instead. Use
	// NewFailClosed, or set this directly, to opt into the latter.
	FailClosed bool

	// OnStateChange is called whenever a CAS-driven transition succeeds.
	OnStateChange func(from, to State)

	// IsFailure classifies an error as trip-worthy. Default: all non-nil
	// errors trip the circuit.
	IsFailure func(err error) bool
}

func (c *Config) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxProbes <= 0 {
		c.HalfOpenMaxProbes = 1
	}
	if c.RecordTTL <= 0 {
		c.RecordTTL = 10 * c.RecoveryTimeout
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return err != nil }
	}
}

// maxCASAttempts bounds the optimistic-concurrency retry loop used for
// every state transition, so contention under storage.RedisStore cannot
// spin forever.
const maxCASAttempts = 8

// Breaker is a named circuit breaker backed by a storage.CircuitBreakerStore.
type Breaker struct {
	name  string
	store storage.CircuitBreakerStore
	cfg   Config
}

// New creates a Breaker named name, backed by store. The store-unreachable
// policy is cfg.FailClosed (default false: fail-open).
func New(store storage.CircuitBreakerStore, name string, cfg Config) *Breaker {
	cfg.applyDefaults()
	return &Breaker{name: name, store: store, cfg: cfg}
}

// NewFailClosed creates a Breaker that refuses calls outright when the
// store is unreachable, instead of the default fail-open policy.
func NewFailClosed(store storage.CircuitBreakerStore, name string, cfg Config) *Breaker {
	cfg.FailClosed = true
	return New(store, name, cfg)
}

// Execute runs op through the breaker. If the breaker refuses the call and
// fallback is non-nil, fallback's result is returned instead; fallback
// results are never recorded as a success or failure against the circuit.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error, fallback func(context.Context, error) error) error {
	expected, admitted, err := b.admit(ctx)
	if err != nil {
		if fallback != nil {
			return fallback(ctx, err)
		}
		return err
	}
	if !admitted {
		if fallback != nil {
			return fallback(ctx, ErrCircuitOpen)
		}
		return ErrCircuitOpen
	}

	opErr := op(ctx)
	b.settle(ctx, expected, opErr)
	return opErr
}

// admit decides whether a call may proceed, performing whatever CAS
// transition (Open->HalfOpen, or claiming a HalfOpen probe slot) the
// current record requires. It returns the record version in effect at
// admission time so settle can record the outcome against it.
func (b *Breaker) admit(ctx context.Context) (expected storage.Record, admitted bool, err error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		rec, ok, gerr := b.store.Get(ctx, b.name)
		if gerr != nil {
			if errors.Is(gerr, storage.ErrStorageUnavailable) && !b.cfg.FailClosed {
				return storage.Record{}, true, nil
			}
			return storage.Record{}, false, gerr
		}
		if !ok {
			rec = storage.Record{State: StateClosed}
		}

		switch rec.State {
		case StateClosed:
			return rec, true, nil

		case StateOpen:
			if time.Since(rec.OpenedAt) < b.cfg.RecoveryTimeout {
				return storage.Record{}, false, nil
			}
			next := rec
			next.State = StateHalfOpen
			next.HalfOpenProbes = 1
			ok, err := b.store.CompareAndSet(ctx, b.name, rec, next, b.cfg.RecordTTL)
			if err != nil {
				if errors.Is(err, storage.ErrStorageUnavailable) && !b.cfg.FailClosed {
					return storage.Record{}, true, nil
				}
				return storage.Record{}, false, err
			}
			if !ok {
				continue // lost the race; re-read and retry
			}
			b.notify(rec.State, next.State)
			return next, true, nil

		case StateHalfOpen:
			if rec.HalfOpenProbes >= b.cfg.HalfOpenMaxProbes {
				return storage.Record{}, false, nil
			}
			next := rec
			next.HalfOpenProbes = rec.HalfOpenProbes + 1
			ok, err := b.store.CompareAndSet(ctx, b.name, rec, next, b.cfg.RecordTTL)
			if err != nil {
				if errors.Is(err, storage.ErrStorageUnavailable) && !b.cfg.FailClosed {
					return storage.Record{}, true, nil
				}
				return storage.Record{}, false, err
			}
			if !ok {
				continue
			}
			return next, true, nil
		}
	}
	return storage.Record{}, false, nil
}

// settle records the outcome of an admitted call, transitioning the
// breaker as needed. expected is the record version returned by admit.
func (b *Breaker) settle(ctx context.Context, expected storage.Record, opErr error) {
	isFailure := b.cfg.IsFailure(opErr)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		rec, ok, err := b.store.Get(ctx, b.name)
		if err != nil {
			return
		}
		if !ok {
			rec = storage.Record{State: StateClosed, Version: expected.Version}
		}

		next := rec
		switch rec.State {
		case StateClosed:
			if isFailure {
				next.Failures = rec.Failures + 1
				next.LastFailureAt = time.Now()
				if next.Failures >= b.cfg.FailureThreshold {
					next.State = StateOpen
					next.OpenedAt = time.Now()
				}
			} else if rec.Failures != 0 {
				next.Failures = 0
			} else {
				return // nothing to change
			}

		case StateHalfOpen:
			if isFailure {
				next.State = StateOpen
				next.OpenedAt = time.Now()
				next.LastFailureAt = time.Now()
			} else {
				next.State = StateClosed
				next.Failures = 0
				next.HalfOpenProbes = 0
			}

		case StateOpen:
			return // a concurrent transition already moved past us
		}

		changed, err := b.store.CompareAndSet(ctx, b.name, rec, next, b.cfg.RecordTTL)
		if err != nil {
			return
		}
		if changed {
			b.notify(rec.State, next.State)
			return
		}
		// lost the race; retry against the newer record
	}
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// State reports the breaker's current state without performing any
// transition. If OPEN but past its recovery timeout, it reports HALF_OPEN
// to reflect what the next admitted call would observe, without persisting
// that transition itself (only Execute's admit does that, via CAS).
func (b *Breaker) State(ctx context.Context) State {
	rec, ok, err := b.store.Get(ctx, b.name)
	if err != nil || !ok {
		return StateClosed
	}
	if rec.State == StateOpen && time.Since(rec.OpenedAt) >= b.cfg.RecoveryTimeout {
		return StateHalfOpen
	}
	return rec.State
}

// Reset forces the breaker back to CLOSED. Administrative operation.
func (b *Breaker) Reset(ctx context.Context) error {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		rec, ok, err := b.store.Get(ctx, b.name)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		next := storage.Record{State: StateClosed}
		changed, err := b.store.CompareAndSet(ctx, b.name, rec, next, b.cfg.RecordTTL)
		if err != nil {
			return err
		}
		if changed {
			b.notify(rec.State, StateClosed)
			return nil
		}
	}
	return nil
}
