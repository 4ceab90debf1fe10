package taskmanager

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/taskguard/cache"
)

// metricsCacheKey is the single key under which a Manager memoizes its
// last computed Metrics snapshot.
const metricsCacheKey = "metrics"

// Metrics is a point-in-time snapshot returned by GetPerformanceMetrics,
// matching the surface named in the manager's external interface.
type Metrics struct {
	TasksSubmitted          int64
	TasksCompleted          int64
	TasksFailed             int64
	TasksTimedOut           int64
	TasksRejected           int64
	RetriesTotal            int64
	InFlight                int64
	QueueDepth              int64
	CurrentConcurrencyLimit int64
	LoadSignal              float64
	P50Latency              time.Duration
	P95Latency              time.Duration
	P99Latency              time.Duration
}

// BackpressureMetrics is the admission-side view returned by
// GetBackpressureMetrics.
type BackpressureMetrics struct {
	QueueDepth                    int
	MaxQueueSize                  int
	LoadSignal                    float64
	LowPriorityRejectionThreshold float64
	OverloadRejected              int64
	QueueFullRejections           int64
}

// latencyRing is a small fixed-capacity ring buffer of recent task
// latencies, used to estimate p50/p95/p99 without keeping an unbounded
// history.
type latencyRing struct {
	mu     sync.Mutex
	buf    []time.Duration
	next   int
	filled bool
}

func newLatencyRing(capacity int) *latencyRing {
	return &latencyRing{buf: make([]time.Duration, capacity)}
}

func (r *latencyRing) record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
}

func (r *latencyRing) percentiles() (p50, p95, p99 time.Duration) {
	r.mu.Lock()
	n := r.next
	if r.filled {
		n = len(r.buf)
	}
	samples := make([]time.Duration, n)
	if r.filled {
		copy(samples, r.buf)
	} else {
		copy(samples, r.buf[:n])
	}
	r.mu.Unlock()

	if n == 0 {
		return 0, 0, 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	at := func(pct float64) time.Duration {
		idx := int(pct * float64(n-1))
		return samples[idx]
	}
	return at(0.50), at(0.95), at(0.99)
}

// CachedPerformanceMetrics returns the same snapshot as
// GetPerformanceMetrics, but memoized for cfg.MetricsCacheTTL: repeated
// calls within the TTL window return the cached snapshot instead of
// resorting the latency ring on every call. A zero MetricsCacheTTL
// disables memoization and this always computes a fresh snapshot.
func (m *Manager) CachedPerformanceMetrics(ctx context.Context) Metrics {
	if m.cfg.MetricsCacheTTL <= 0 {
		return m.GetPerformanceMetrics()
	}
	if raw, ok := m.metricsCache.Get(ctx, metricsCacheKey); ok {
		var snapshot Metrics
		if err := json.Unmarshal(raw, &snapshot); err == nil {
			return snapshot
		}
	}

	snapshot := m.GetPerformanceMetrics()
	if raw, err := json.Marshal(snapshot); err == nil {
		_ = m.metricsCache.Set(ctx, metricsCacheKey, raw, m.cfg.MetricsCacheTTL)
	}
	return snapshot
}

func (r *latencyRing) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.next = 0
	r.filled = false
}

// otelRecorder publishes counters and observable gauges to an otel
// metric.Meter. Gauges are registered as callbacks reading the manager's
// live state, the documented otel idiom for "current value" instruments.
type otelRecorder struct {
	submitted metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	timedOut  metric.Int64Counter
	rejected  metric.Int64Counter
	retries   metric.Int64Counter
}

func newOTelRecorder(m *Manager) *otelRecorder {
	meter := otel.Meter("github.com/jonwraymond/taskguard/taskmanager")

	submitted, _ := meter.Int64Counter("taskguard.tasks.submitted", metric.WithDescription("Tasks submitted to the manager"))
	completed, _ := meter.Int64Counter("taskguard.tasks.completed", metric.WithDescription("Tasks completed successfully"))
	failed, _ := meter.Int64Counter("taskguard.tasks.failed", metric.WithDescription("Tasks completed with an error"))
	timedOut, _ := meter.Int64Counter("taskguard.tasks.timed_out", metric.WithDescription("Tasks that exceeded their deadline"))
	rejected, _ := meter.Int64Counter("taskguard.tasks.rejected", metric.WithDescription("Tasks rejected at admission"))
	retries, _ := meter.Int64Counter("taskguard.tasks.retries", metric.WithDescription("Retry attempts recorded by the resilience facade"))

	loadGauge, _ := meter.Float64ObservableGauge("taskguard.load_signal", metric.WithDescription("Normalised utilisation in [0,1]"))
	queueGauge, _ := meter.Int64ObservableGauge("taskguard.queue.depth", metric.WithDescription("Admission queue depth"))
	limitGauge, _ := meter.Int64ObservableGauge("taskguard.concurrency.limit", metric.WithDescription("Current concurrency limit"))

	_, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(loadGauge, m.LoadSignal())
		o.ObserveInt64(queueGauge, int64(m.queueDepth()))
		o.ObserveInt64(limitGauge, int64(m.ConcurrencyLimit()))
		return nil
	}, loadGauge, queueGauge, limitGauge)

	return &otelRecorder{
		submitted: submitted,
		completed: completed,
		failed:    failed,
		timedOut:  timedOut,
		rejected:  rejected,
		retries:   retries,
	}
}
