package bulkhead

import "errors"

// ErrBulkheadFull is returned when no slot is available and the waiter
// queue is already at MaxQueueSize.
var ErrBulkheadFull = errors.New("bulkhead: full")

// ErrBulkheadTimeout is returned when a call queued for a slot but
// MaxWait elapsed before one freed up.
var ErrBulkheadTimeout = errors.New("bulkhead: timed out waiting for a slot")
