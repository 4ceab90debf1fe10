package ratelimit

import "errors"

// Sentinel errors for rate limiter operations.
var (
	// ErrRateLimited is returned when the limiter denied the request and
	// the caller chose not to wait.
	ErrRateLimited = errors.New("ratelimit: rate limit exceeded")

	// ErrMaxWaitExceeded is returned when Execute(wait=true) waited the
	// configured maximum and was still denied.
	ErrMaxWaitExceeded = errors.New("ratelimit: max wait exceeded")
)
