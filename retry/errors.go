package retry

import "errors"

// ErrCancelled is returned when ctx is cancelled (not merely deadline
// exceeded) while waiting between attempts.
var ErrCancelled = errors.New("retry: cancelled")
