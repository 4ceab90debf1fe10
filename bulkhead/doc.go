// Package bulkhead limits concurrent operations to a fixed pool of slots,
// grounded on resilience.Bulkhead's channel-semaphore idiom. Unlike its
// teacher, which only offers an immediate-fail-or-single-timer wait,
// bulkhead adds a bounded FIFO waiter queue: calls that arrive when every
// slot is busy queue (in arrival order) up to MaxQueueSize instead of
// racing each other for the next freed slot, and are released into the
// pool in the order they arrived.
package bulkhead
