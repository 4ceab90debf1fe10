// Package taskmanager provides a single process-wide gate that bounds
// concurrency, adapts it to observed load, runs a priority-ordered
// admission queue, propagates an ambient taskctx.Context, and records
// metrics. It has no direct teacher analog; it is built from a
// resizable buffered-channel semaphore, the priority queue recipe
// documented by container/heap, the ambient context carrier in taskctx,
// otel counters and gauges from the global otel.Meter, and an
// observe.Logger.
package taskmanager
