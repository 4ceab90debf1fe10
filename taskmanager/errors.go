package taskmanager

import "errors"

// ErrOverloadRejected is returned when a LOW priority submission is
// rejected because the load signal is at or above the configured
// low-priority rejection threshold.
var ErrOverloadRejected = errors.New("taskmanager: rejected under load")

// ErrQueueFull is returned when the admission queue is already at its
// configured capacity.
var ErrQueueFull = errors.New("taskmanager: admission queue full")

// ErrShuttingDown is returned by any submission made after Shutdown has
// been called.
var ErrShuttingDown = errors.New("taskmanager: shutting down")

// ErrCancelled is returned when the caller's context is done before a
// permit could be acquired or a task could be admitted.
var ErrCancelled = errors.New("taskmanager: cancelled")
