package taskmanager

import (
	"context"

	"github.com/jonwraymond/taskguard/auth"
)

// ScopedName prefixes name with the tenant ID carried on ctx (if any),
// for callers that want their circuit breakers, rate limiters, and
// bulkheads partitioned per tenant rather than shared process-wide.
// Requests with no identity bound to ctx get the name back unscoped.
func ScopedName(ctx context.Context, name string) string {
	tenant := auth.TenantIDFromContext(ctx)
	if tenant == "" {
		return name
	}
	return tenant + ":" + name
}
