// Package circuit implements a three-state circuit breaker
// (Closed/Open/HalfOpen) whose state record lives behind a
// storage.CircuitBreakerStore, so the same named breaker can be shared
// process-local (storage.MemoryStore) or across a fleet
// (storage.RedisStore), with transitions expressed as compare-and-set
// operations to prevent split-brain decisions.
//
// # Ecosystem Position
//
// circuit splits each call into admit (decide whether the call may run)
// and settle (record its outcome), with a State enum and
// OnStateChange/IsFailure hooks. The state lives in the shared store
// rather than an in-process struct field, and Execute takes an explicit
// fallback path. The resilience package wraps a Breaker as one of its
// named wrappers.
//
// # State machine
//
//	CLOSED --[failures >= threshold]--> OPEN
//	OPEN --[now-openedAt >= recoveryTimeout, next admitted call]--> HALF_OPEN
//	HALF_OPEN --[probe succeeds]--> CLOSED
//	HALF_OPEN --[probe fails]--> OPEN
//
// A fallback invocation never counts as a success or failure against the
// circuit: the underlying call still failed, the fallback is a neutral
// side path.
package circuit
