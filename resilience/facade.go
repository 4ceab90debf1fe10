package resilience

import (
	"context"
	"time"

	"github.com/jonwraymond/taskguard/bulkhead"
	"github.com/jonwraymond/taskguard/circuit"
	"github.com/jonwraymond/taskguard/observe"
	"github.com/jonwraymond/taskguard/retry"
	"github.com/jonwraymond/taskguard/storage"
	"github.com/jonwraymond/taskguard/taskctx"
	"github.com/jonwraymond/taskguard/taskmanager"
	"github.com/jonwraymond/taskguard/timeout"
)

// scopedName returns name prefixed by the caller's tenant, so a named
// breaker or bulkhead is partitioned per tenant rather than shared
// process-wide when the request carries an identity.
func scopedName(ctx context.Context, name string) string {
	return taskmanager.ScopedName(ctx, name)
}

// Operation is the unit every wrapper transforms: a context-aware call
// that may fail.
type Operation func(context.Context) error

// Wrapper transforms an Operation into another Operation. Composing
// wrappers is composing these transforms.
type Wrapper interface {
	Wrap(op Operation) Operation
}

// WrapperFunc adapts a plain function to Wrapper.
type WrapperFunc func(Operation) Operation

// Wrap implements Wrapper.
func (f WrapperFunc) Wrap(op Operation) Operation { return f(op) }

// Facade builds named resilience wrappers sharing one registry and
// (optionally) one taskmanager.Manager. Each Facade has its own registry:
// two Facades do not share named breakers or bulkheads.
type Facade struct {
	taskManager *taskmanager.Manager
	logger      observe.Logger
	registry    *registry
}

// NewFacade creates a Facade. tm may be nil, in which case WithTimeout
// falls back to the standalone timeout package instead of routing
// through a manager's semaphore.
func NewFacade(tm *taskmanager.Manager, logger observe.Logger) *Facade {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &Facade{taskManager: tm, logger: logger, registry: newRegistry()}
}

// WithTimeout bounds an operation's execution time. If the Facade was
// built with a *taskmanager.Manager, the operation also runs under that
// manager's concurrency gate via RunWithTimeout; otherwise it runs
// through the standalone timeout package.
func (f *Facade) WithTimeout(d time.Duration) Wrapper {
	return WrapperFunc(func(op Operation) Operation {
		return func(ctx context.Context) error {
			if f.taskManager != nil {
				tc, _ := taskctx.FromContext(ctx)
				return f.taskManager.RunWithTimeout(ctx, tc, d, op)
			}
			return timeout.Execute(ctx, d, op)
		}
	})
}

// WithRetry retries the operation per cfg. If the Facade has a
// taskmanager.Manager and cfg.OnRetry is nil, each retry attempt is
// recorded against its metrics via RecordRetry; a caller-supplied
// OnRetry is used as is and records nothing.
func (f *Facade) WithRetry(cfg retry.Config) Wrapper {
	if f.taskManager != nil && cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			f.taskManager.RecordRetry(context.Background())
		}
	}
	r := retry.New(cfg)
	return WrapperFunc(func(op Operation) Operation {
		return func(ctx context.Context) error {
			return r.Execute(ctx, op)
		}
	})
}

// WithCircuitBreaker resolves (or creates) the named breaker in the
// shared registry and wraps op with it. fallback may be nil.
func (f *Facade) WithCircuitBreaker(store storage.CircuitBreakerStore, name string, cfg circuit.Config, fallback func(context.Context, error) error) Wrapper {
	if cfg.OnStateChange == nil {
		scoped := f.logger.WithComponent(observe.ComponentMeta{Kind: "breaker", Name: name})
		cfg.OnStateChange = func(from, to circuit.State) {
			scoped.Info(context.Background(), "circuit breaker state change",
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		}
	}
	return WrapperFunc(func(op Operation) Operation {
		return func(ctx context.Context) error {
			b := f.registry.breaker(store, scopedName(ctx, name), cfg)
			return b.Execute(ctx, op, fallback)
		}
	})
}

// WithBulkhead resolves (or creates) the named bulkhead in the shared
// registry and wraps op with it. The resolved name is scoped to the
// caller's tenant (see taskmanager.ScopedName), so tenants get isolated
// pools under a shared logical name instead of contending for one.
func (f *Facade) WithBulkhead(name string, cfg bulkhead.Config) Wrapper {
	return WrapperFunc(func(op Operation) Operation {
		return func(ctx context.Context) error {
			b := f.registry.bulkhead(scopedName(ctx, name), cfg)
			return b.Execute(ctx, op)
		}
	})
}

// WithRateLimiter wraps op with limiter.Execute(op, wait).
func (f *Facade) WithRateLimiter(limiter interface {
	Execute(ctx context.Context, wait bool, op func(context.Context) error) error
}, wait bool) Wrapper {
	return WrapperFunc(func(op Operation) Operation {
		return func(ctx context.Context) error {
			return limiter.Execute(ctx, wait, op)
		}
	})
}

// Compose chains wrappers outermost-first: Compose(a, b, c).Wrap(op) runs
// as a(b(c(op))).
func Compose(wrappers ...Wrapper) Wrapper {
	return WrapperFunc(func(op Operation) Operation {
		wrapped := op
		for i := len(wrappers) - 1; i >= 0; i-- {
			wrapped = wrappers[i].Wrap(wrapped)
		}
		return wrapped
	})
}

// Execute is a convenience for Compose(wrappers...).Wrap(op)(ctx).
func (f *Facade) Execute(ctx context.Context, op Operation, wrappers ...Wrapper) error {
	return Compose(wrappers...).Wrap(op)(ctx)
}
