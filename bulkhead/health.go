package bulkhead

import (
	"context"
	"fmt"

	"github.com/jonwraymond/taskguard/health"
)

// HealthChecker reports StatusDegraded once every slot is active, and
// StatusUnhealthy once the wait queue is also full (new callers are being
// rejected outright), matching circuit.Breaker's HealthChecker pattern.
func (b *Bulkhead) HealthChecker(name string) health.Checker {
	return health.NewCheckerFunc("bulkhead:"+name, func(ctx context.Context) health.Result {
		m := b.Metrics()
		details := map[string]any{
			"active":         m.Active,
			"max_concurrent": m.MaxConcurrent,
			"queue_length":   m.QueueLength,
			"rejected":       m.Rejected,
		}

		if m.Active >= m.MaxConcurrent && m.QueueLength >= b.cfg.MaxQueueSize {
			return health.Unhealthy(fmt.Sprintf("bulkhead %q full, queue exhausted", name), ErrBulkheadFull).WithDetails(details)
		}
		if m.Active >= m.MaxConcurrent {
			return health.Degraded(fmt.Sprintf("bulkhead %q at capacity", name)).WithDetails(details)
		}
		return health.Healthy(fmt.Sprintf("bulkhead %q has headroom", name)).WithDetails(details)
	})
}
