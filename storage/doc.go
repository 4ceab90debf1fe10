// Package storage abstracts the atomic, named-key state store that backs
// the distributed resilience primitives: rate limiters and circuit
// breakers.
//
// # Ecosystem Position
//
// storage sits underneath ratelimit and circuit the way cache.Cache sits
// underneath tool execution in the sibling cache package: a small,
// context-first interface with exactly the operations its callers need,
// implemented once locally (MemoryStore) and once against a shared
// backend (RedisStore).
//
//	┌─────────────────────────────────────────────────────────┐
//	│  ratelimit / circuit                                     │
//	│         │                                                │
//	│         ▼                                                │
//	│  storage.RateLimiterStore / storage.CircuitBreakerStore   │
//	│    ┌───────────────┐        ┌────────────────────────┐   │
//	│    │ MemoryStore   │        │ RedisStore (EVAL/CAS)  │   │
//	│    └───────────────┘        └────────────────────────┘   │
//	└─────────────────────────────────────────────────────────┘
//
// # Atomicity contract
//
// Every method on both interfaces must appear atomic to concurrent
// observers: MemoryStore achieves this with a single mutex, RedisStore
// with server-side Lua scripts (go-redis's *redis.Script, loaded once and
// invoked by SHA thereafter). Values expire once a primitive has been idle
// long enough that losing its state is tolerable; RedisStore takes "now"
// from Redis's own TIME command when available to avoid client clock skew,
// MemoryStore takes it from the caller-supplied time.Time.
//
// # Failure policy
//
// RedisStore failures surface as ErrStorageUnavailable. Callers (ratelimit,
// circuit) decide whether to fail open or fail closed; storage itself never
// makes that policy choice.
package storage
