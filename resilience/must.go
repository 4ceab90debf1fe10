package resilience

import (
	"fmt"

	"github.com/jonwraymond/taskguard/bulkhead"
	"github.com/jonwraymond/taskguard/circuit"
	"github.com/jonwraymond/taskguard/observe"
	"github.com/jonwraymond/taskguard/storage"
	"github.com/jonwraymond/taskguard/taskmanager"
)

// MustNewFacade panics if tm is nil, matching a pattern the original
// implementation used for eager validation at startup: a misconfigured
// wiring mistake surfaces immediately rather than as a nil-pointer panic
// on the first request.
func MustNewFacade(tm *taskmanager.Manager, logger observe.Logger) *Facade {
	if tm == nil {
		panic("resilience: MustNewFacade requires a non-nil taskmanager.Manager")
	}
	return NewFacade(tm, logger)
}

// MustNewCircuitBreaker panics if store is nil, instead of deferring the
// failure to the breaker's first Execute call.
func MustNewCircuitBreaker(store storage.CircuitBreakerStore, name string, cfg circuit.Config) *circuit.Breaker {
	if store == nil {
		panic(fmt.Sprintf("resilience: MustNewCircuitBreaker(%q) requires a non-nil store", name))
	}
	return circuit.New(store, name, cfg)
}

// MustNewBulkhead panics if cfg.MaxConcurrent is negative, instead of
// silently falling back to the default.
func MustNewBulkhead(name string, cfg bulkhead.Config) *bulkhead.Bulkhead {
	if cfg.MaxConcurrent < 0 {
		panic(fmt.Sprintf("resilience: MustNewBulkhead(%q) requires MaxConcurrent >= 0", name))
	}
	return bulkhead.New(cfg)
}
