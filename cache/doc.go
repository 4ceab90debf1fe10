// Package cache provides a small byte-value cache with TTL policies,
// trimmed to the generic Get/Set/Delete concern: a [Cache] interface, an
// in-memory [MemoryCache] implementation, and [Policy] to configure TTL
// defaults and maximums.
//
// taskmanager uses a MemoryCache to memoize metrics snapshots (see
// taskmanager.Manager's cached metrics accessors) so frequent polling
// from multiple callers doesn't recompute percentile latency on every
// call.
package cache
