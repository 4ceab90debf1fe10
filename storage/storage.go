package storage

import (
	"context"
	"errors"
	"time"
)

// ErrStorageUnavailable is returned when the distributed backend cannot be
// reached. Callers are responsible for deciding whether this fails open
// (allow the protected call) or fails closed (deny it); storage never
// makes that decision itself.
var ErrStorageUnavailable = errors.New("storage: backend unavailable")

// CircuitState mirrors the circuit breaker's three states without importing
// the circuit package, keeping storage free of a dependency on its callers.
type CircuitState int

const (
	// CircuitClosed means the circuit is operating normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit is blocking all requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit is testing if the dependency recovered.
	CircuitHalfOpen
)

// String implements fmt.Stringer. Defined here, not in the circuit package,
// because circuit.State is a type alias for CircuitState and aliases share
// their underlying type's method set.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Record is the persisted state of one named circuit breaker.
type Record struct {
	State          CircuitState
	Failures       int
	LastFailureAt  time.Time
	OpenedAt       time.Time
	HalfOpenProbes int
	// Version increases on every write; used by CompareAndSet to detect
	// concurrent modification without relying on field-by-field equality.
	Version int64
}

// RateLimiterStore exposes the atomic operations the token bucket and
// fixed window limiters need, per name.
type RateLimiterStore interface {
	// ConsumeTokenBucket atomically refills and (if enough tokens are
	// available) deducts n tokens from the named bucket. now is supplied
	// by the caller so that tests can control the clock; MemoryStore uses
	// it as the refill reference point, while RedisStore ignores it and
	// takes the time from the Redis server's TIME command.
	ConsumeTokenBucket(ctx context.Context, name string, capacity, refillPerSec float64, now time.Time, n float64) (granted bool, remaining float64, retryAfter time.Duration, err error)

	// ConsumeFixedWindow atomically advances the named window (resetting
	// it if period has elapsed) and, if count < limit, increments it.
	ConsumeFixedWindow(ctx context.Context, name string, period time.Duration, limit int64, now time.Time) (granted bool, count int64, resetAt time.Time, err error)
}

// CircuitBreakerStore exposes the atomic operations the circuit breaker
// needs to keep its state record consistent across callers.
type CircuitBreakerStore interface {
	// Get returns the current record for name, or ok=false if none exists
	// (equivalent to a fresh CLOSED breaker).
	Get(ctx context.Context, name string) (rec Record, ok bool, err error)

	// CompareAndSet stores next for name if the currently stored record's
	// Version matches expected.Version (or no record exists and
	// expected.Version is zero). Returns false, nil if the comparison
	// failed (a concurrent writer won the race) rather than treating that
	// as an error.
	CompareAndSet(ctx context.Context, name string, expected, next Record, ttl time.Duration) (bool, error)
}

// Store combines both interfaces for backends that implement both, as
// MemoryStore and RedisStore do.
type Store interface {
	RateLimiterStore
	CircuitBreakerStore
}
