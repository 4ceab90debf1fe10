package taskctx

import "context"

// contextKey is an unexported type so Context values never collide with
// keys set by other packages using context.WithValue.
type contextKey int

const carrierKey contextKey = iota

// Context is an immutable key/value carrier bound to a task at admission.
// The zero value is an empty, usable carrier.
type Context struct {
	values map[string]any
}

// New returns an empty Context.
func New() Context {
	return Context{}
}

// With returns a copy of c with key bound to value. The receiver is never
// mutated, so a parent Context may be safely extended by multiple children
// without observing each other's additions.
func (c Context) With(key string, value any) Context {
	next := make(map[string]any, len(c.values)+1)
	for k, v := range c.values {
		next[k] = v
	}
	next[key] = value
	return Context{values: next}
}

// Value returns the value bound to key and whether it was present.
func (c Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Len reports the number of bound keys.
func (c Context) Len() int {
	return len(c.values)
}

// WithContext returns a new context.Context carrying tc, retrievable with
// FromContext. Any Context previously bound under ctx is replaced.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, carrierKey, tc)
}

// FromContext retrieves the Context bound to ctx. Returns an empty Context
// and false if none was bound.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(carrierKey).(Context)
	return tc, ok
}

// MustFromContext retrieves the Context bound to ctx, or an empty Context
// if none was bound. It never fails, making it convenient for read sites
// that treat a missing carrier the same as an empty one.
func MustFromContext(ctx context.Context) Context {
	tc, _ := FromContext(ctx)
	return tc
}
