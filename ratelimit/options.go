package ratelimit

import "time"

// config holds the options shared by TokenBucket and FixedWindow.
type config struct {
	failOpen bool
	maxWait  time.Duration
}

func defaultConfig() config {
	return config{
		failOpen: true,
		maxWait:  time.Second,
	}
}

// Option configures a limiter.
type Option func(*config)

// FailOpen controls behavior when the storage backend is unreachable.
// Default: true (allow the call through unprotected).
func FailOpen(failOpen bool) Option {
	return func(c *config) { c.failOpen = failOpen }
}

// MaxWait caps how long Execute(wait=true) will sleep before giving up,
// regardless of the retryAfter the limiter reports. Default: 1 second.
func MaxWait(d time.Duration) Option {
	return func(c *config) { c.maxWait = d }
}
