// Package ratelimit implements the token bucket and fixed window rate
// limiting algorithms described in the storage package's atomic contract.
//
// # Ecosystem Position
//
// Both limiters are thin wrappers over a storage.RateLimiterStore: all
// bucket/window math lives in storage (local mutex, or a Redis Lua script);
// this package only shapes the TryAcquire/Execute/Capacity surface and the
// wait-then-retry behavior of Execute(wait=true).
//
//	┌────────────────────────────────────────────────┐
//	│  TokenBucket / FixedWindow                      │
//	│        │ TryAcquire / Execute / Capacity        │
//	│        ▼                                        │
//	│  storage.RateLimiterStore                       │
//	└────────────────────────────────────────────────┘
//
// # Fail-open policy
//
// If the backing store returns ErrStorageUnavailable, both limiters fail
// open by default (the call proceeds unprotected) to avoid turning a
// limiter outage into a full service outage. Set FailOpen(false) to fail
// closed instead.
package ratelimit
