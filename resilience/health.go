package resilience

import (
	"github.com/jonwraymond/taskguard/health"
)

// HealthChecker aggregates the bound taskmanager.Manager's health (if any)
// with every circuit breaker and bulkhead this Facade has created,
// reporting the aggregate's worst status per health.Aggregator.OverallStatus.
func (f *Facade) HealthChecker() health.Checker {
	agg := health.NewAggregator()
	if f.taskManager != nil {
		agg.Register("taskmanager", f.taskManager.HealthChecker())
	}
	for _, c := range f.registry.healthCheckers() {
		agg.Register(c.Name(), c)
	}
	return agg.Checker()
}
