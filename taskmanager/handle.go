package taskmanager

import "context"

// Handle is an awaitable reference to a scheduled task's result, returned
// by ScheduleTaskWithPriority.
type Handle struct {
	done chan error
}

// Wait blocks until the task completes or ctx is done, whichever comes
// first. Waiting does not cancel the task itself.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case err := <-h.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
