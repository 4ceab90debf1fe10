// Package retry implements retry with backoff, grounded on
// resilience.Retry's BackoffStrategy/jitter design but adding
// deadline-awareness: a retry loop stops and returns the last error as soon
// as the remaining time until ctx's deadline is shorter than the delay it
// would otherwise sleep for, instead of oversleeping past a caller-imposed
// deadline and then failing anyway.
package retry
