package timeout

import "errors"

// ErrDeadlineExceeded is returned when op does not complete within the
// configured timeout.
var ErrDeadlineExceeded = errors.New("timeout: deadline exceeded")
