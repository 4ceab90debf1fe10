package circuit

import (
	"context"
	"fmt"

	"github.com/jonwraymond/taskguard/health"
)

// HealthChecker reports StatusDegraded while OPEN or HALF_OPEN and
// StatusHealthy while CLOSED, so a breaker can be aggregated alongside
// other components' health checks.
func (b *Breaker) HealthChecker() health.Checker {
	return health.NewCheckerFunc("circuit:"+b.name, func(ctx context.Context) health.Result {
		state := b.State(ctx)
		if state == StateClosed {
			return health.Healthy("closed").WithDetails(map[string]any{"state": state.String()})
		}
		return health.Degraded(fmt.Sprintf("breaker is %s", state)).WithDetails(map[string]any{"state": state.String()})
	})
}
