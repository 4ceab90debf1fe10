package resilience

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/taskguard/bulkhead"
	"github.com/jonwraymond/taskguard/circuit"
	"github.com/jonwraymond/taskguard/health"
	"github.com/jonwraymond/taskguard/storage"
)

// registry is a lock-guarded create-on-miss map of named primitives,
// one per Facade (not shared across Facades). Entries are never replaced
// for the registry's lifetime: a second call with the same name returns
// the first instance regardless of the config passed.
//
// Construction for a not-yet-seen name is coalesced through sf so that N
// goroutines racing to create the same name's entry for the first time
// run circuit.New/bulkhead.New exactly once and all share the result,
// instead of each constructing its own (losing) instance under the lock.
type registry struct {
	mu        sync.Mutex
	breakers  map[string]*circuit.Breaker
	bulkheads map[string]*bulkhead.Bulkhead
	sf        singleflight.Group
}

func newRegistry() *registry {
	return &registry{
		breakers:  make(map[string]*circuit.Breaker),
		bulkheads: make(map[string]*bulkhead.Bulkhead),
	}
}

func (r *registry) breaker(store storage.CircuitBreakerStore, name string, cfg circuit.Config) *circuit.Breaker {
	r.mu.Lock()
	if b, ok := r.breakers[name]; ok {
		r.mu.Unlock()
		return b
	}
	r.mu.Unlock()

	v, _, _ := r.sf.Do("breaker:"+name, func() (any, error) {
		r.mu.Lock()
		if b, ok := r.breakers[name]; ok {
			r.mu.Unlock()
			return b, nil
		}
		r.mu.Unlock()

		b := circuit.New(store, name, cfg)

		r.mu.Lock()
		r.breakers[name] = b
		r.mu.Unlock()
		return b, nil
	})
	return v.(*circuit.Breaker)
}

func (r *registry) bulkhead(name string, cfg bulkhead.Config) *bulkhead.Bulkhead {
	r.mu.Lock()
	if b, ok := r.bulkheads[name]; ok {
		r.mu.Unlock()
		return b
	}
	r.mu.Unlock()

	v, _, _ := r.sf.Do("bulkhead:"+name, func() (any, error) {
		r.mu.Lock()
		if b, ok := r.bulkheads[name]; ok {
			r.mu.Unlock()
			return b, nil
		}
		r.mu.Unlock()

		b := bulkhead.New(cfg)

		r.mu.Lock()
		r.bulkheads[name] = b
		r.mu.Unlock()
		return b, nil
	})
	return v.(*bulkhead.Bulkhead)
}

// healthCheckers returns a Checker per currently registered breaker and
// bulkhead, for Facade.HealthChecker to aggregate.
func (r *registry) healthCheckers() []health.Checker {
	r.mu.Lock()
	defer r.mu.Unlock()

	checkers := make([]health.Checker, 0, len(r.breakers)+len(r.bulkheads))
	for _, b := range r.breakers {
		checkers = append(checkers, b.HealthChecker())
	}
	for name, b := range r.bulkheads {
		checkers = append(checkers, b.HealthChecker(name))
	}
	return checkers
}
