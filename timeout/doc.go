// Package timeout wraps an operation with a bounded deadline, grounded on
// resilience.Timeout's context.WithTimeout plus buffered-channel/select
// idiom.
//
// timeout cannot force termination of uncooperative work: op runs in its
// own goroutine, and Execute returning after the deadline does not stop
// that goroutine from continuing to run in the background. Operations
// passed to Execute must themselves observe ctx.Done() to actually stop
// doing work.
//
// Nested Execute calls compose by minimum: the tighter of the caller's
// existing deadline and cfg.Duration governs, and is recorded on ctx's
// taskctx.Context so Remaining can report the shared budget to a wrapper
// several layers deeper in the same call chain.
package timeout
