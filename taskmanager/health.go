package taskmanager

import (
	"context"
	"fmt"

	"github.com/jonwraymond/taskguard/health"
)

// HealthChecker reports StatusDegraded once load signal crosses the
// low-priority rejection threshold (the point at which the manager has
// already started shedding work) and StatusHealthy otherwise.
func (m *Manager) HealthChecker() health.Checker {
	return health.NewCheckerFunc("taskmanager", func(ctx context.Context) health.Result {
		load := m.LoadSignal()
		depth := m.queueDepth()

		if load >= m.cfg.Backpressure.LowPriorityRejectionThreshold {
			return health.Degraded(fmt.Sprintf("load signal %.2f at or above shedding threshold", load)).
				WithDetails(map[string]any{"load_signal": load, "queue_depth": depth})
		}
		return health.Healthy("accepting work").
			WithDetails(map[string]any{"load_signal": load, "queue_depth": depth})
	})
}
