// Package resilience composes the circuit, retry, timeout, bulkhead, and
// ratelimit packages into named wrappers: wrappers as an interface whose
// single method transforms an operation into an operation, composed by
// function composition. Compose applies wrappers in the order the caller
// passes them, first outermost; it imposes no fixed order of its own.
//
// Each wrapper is backed by the storage-pluggable primitives in
// circuit/retry/timeout/bulkhead/ratelimit, and named circuit breakers
// and bulkheads are resolved through the Facade's registry (lock-guarded
// create-on-miss, entries never replaced; one registry per Facade)
// instead of being constructed ad hoc by the caller. Facade also holds a *taskmanager.Manager:
// WithTimeout runs the wrapped operation through the manager's own
// RunWithTimeout, so a timeout-wrapped call also counts against — and
// waits its turn under — the manager's shared concurrency gate.
package resilience
