package taskmanager

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/taskguard/cache"
	"github.com/jonwraymond/taskguard/observe"
	"github.com/jonwraymond/taskguard/taskctx"
)

// BackpressureConfig configures admission behavior.
type BackpressureConfig struct {
	// MaxQueueSize bounds the admission queue. Default: 1024.
	MaxQueueSize int

	// LowPriorityRejectionThreshold is the load signal at or above which
	// PriorityLow submissions are rejected outright. Default: 0.9.
	LowPriorityRejectionThreshold float64
}

func (c *BackpressureConfig) applyDefaults() {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1024
	}
	if c.LowPriorityRejectionThreshold <= 0 {
		c.LowPriorityRejectionThreshold = 0.9
	}
}

// Config configures a Manager.
type Config struct {
	// MaxConcurrent is the starting (and, without Adaptive, permanent)
	// concurrency ceiling. Default: 10.
	MaxConcurrent int

	// DefaultTimeout is used by RunWithTimeout callers that pass a zero
	// duration. Default: 30s.
	DefaultTimeout time.Duration

	// Adaptive enables the background controller that resizes the
	// concurrency limit between MinConcurrent and ceilingMultiplier times
	// MaxConcurrent based on the sampled load signal.
	Adaptive bool

	// CPUThreshold is the load signal above which the controller shrinks
	// the concurrency limit. Default: 0.8.
	CPUThreshold float64

	// Hysteresis is subtracted from CPUThreshold to get the load signal
	// below which the controller grows the limit back. Default: 0.2.
	Hysteresis float64

	// MinConcurrent floors adaptive shrinking. Default: 1.
	MinConcurrent int

	// AdjustInterval is how often the adaptive controller samples the
	// load signal. Default: 1s.
	AdjustInterval time.Duration

	Backpressure BackpressureConfig

	// MetricsEnabled registers otel instruments when true. No default is
	// applied: the zero value leaves them unregistered.
	MetricsEnabled bool

	// MetricsCacheTTL memoizes GetPerformanceMetrics snapshots for this
	// long, so concurrent pollers don't each pay for a fresh percentile
	// computation over the latency ring. Zero disables memoization.
	MetricsCacheTTL time.Duration

	Logger observe.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.CPUThreshold <= 0 {
		c.CPUThreshold = 0.8
	}
	if c.Hysteresis <= 0 {
		c.Hysteresis = 0.2
	}
	if c.MinConcurrent <= 0 {
		c.MinConcurrent = 1
	}
	if c.AdjustInterval <= 0 {
		c.AdjustInterval = time.Second
	}
	if c.Logger == nil {
		c.Logger = observe.NewLogger("info")
	}
	c.Backpressure.applyDefaults()
}

// ceilingMultiplier bounds how far Adaptive is allowed to grow
// MaxConcurrent above its starting value.
const ceilingMultiplier = 4

// Manager is the process-wide concurrency gate, admission queue, and
// metrics recorder described in the package doc.
type Manager struct {
	cfg     Config
	ceiling int

	sem chan struct{}

	mu              sync.Mutex
	cond            *sync.Cond
	queue           priorityQueue
	seq             uint64
	currentLimit    int
	pendingDecrease int
	shuttingDown    bool
	drained         chan struct{}

	inFlight atomic.Int64

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// wg tracks the long-lived dispatchLoop/adaptiveLoop goroutines.
	wg sync.WaitGroup
	// tasks tracks dispatched task goroutines; unlike wg it also collects
	// the first non-nil error among tasks still in flight at Shutdown.
	tasks errgroup.Group

	metrics struct {
		submitted, completed, failed, timedOut, overloadRejected, queueFullRejected, retries atomic.Int64
	}
	latency      *latencyRing
	otel         *otelRecorder
	metricsCache *cache.MemoryCache
	log          observe.Logger
}

// New creates a Manager from cfg, applying defaults to unset fields, and
// starts its dispatcher goroutine (and adaptive controller, if enabled).
func New(cfg Config) *Manager {
	cfg.applyDefaults()

	ceiling := cfg.MaxConcurrent
	if cfg.Adaptive {
		ceiling = cfg.MaxConcurrent * ceilingMultiplier
	}

	m := &Manager{
		cfg:          cfg,
		ceiling:      ceiling,
		sem:          make(chan struct{}, ceiling),
		currentLimit: cfg.MaxConcurrent,
		drained:      make(chan struct{}),
		latency:      newLatencyRing(256),
		metricsCache: cache.NewMemoryCache(cache.Policy{DefaultTTL: cfg.MetricsCacheTTL}),
		log:          cfg.Logger.WithComponent(observe.ComponentMeta{Kind: "taskmanager", Name: "default"}),
	}
	m.cond = sync.NewCond(&m.mu)
	m.rootCtx, m.rootCancel = context.WithCancel(context.Background())

	for i := 0; i < cfg.MaxConcurrent; i++ {
		m.sem <- struct{}{}
	}

	if cfg.MetricsEnabled {
		m.otel = newOTelRecorder(m)
	}

	m.wg.Add(1)
	go m.dispatchLoop()

	if cfg.Adaptive {
		m.wg.Add(1)
		go m.adaptiveLoop()
	}

	return m
}

func (m *Manager) isShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shuttingDown
}

// acquirePermit blocks until a permit is available or ctx is done.
func (m *Manager) acquirePermit(ctx context.Context) error {
	select {
	case <-m.sem:
		m.inFlight.Add(1)
		return nil
	case <-ctx.Done():
		return errors.Join(ErrCancelled, ctx.Err())
	}
}

// releasePermit returns a permit to the pool, unless the adaptive
// controller has a pending decrease to absorb instead — the permit in use
// is never revoked mid-flight, only withheld from recirculation once it
// naturally frees up.
func (m *Manager) releasePermit() {
	m.inFlight.Add(-1)

	m.mu.Lock()
	if m.pendingDecrease > 0 {
		m.pendingDecrease--
		m.currentLimit--
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.sem <- struct{}{}
}

// RunWithSemaphore acquires one permit, binds tc into ctx, runs op, and
// releases the permit on every exit path including cancellation.
func (m *Manager) RunWithSemaphore(ctx context.Context, tc taskctx.Context, op func(context.Context) error) error {
	if m.isShuttingDown() {
		return ErrShuttingDown
	}
	if err := m.acquirePermit(ctx); err != nil {
		return err
	}
	defer m.releasePermit()

	m.metrics.submitted.Add(1)
	start := time.Now()
	if m.otel != nil {
		m.otel.submitted.Add(ctx, 1)
	}

	runCtx := taskctx.WithContext(ctx, tc)
	err := op(runCtx)

	m.recordOutcome(ctx, err, time.Since(start))
	return err
}

// RunWithTimeout composes RunWithSemaphore with a deadline, per the
// manager's convenience surface. A zero d uses cfg.DefaultTimeout.
func (m *Manager) RunWithTimeout(ctx context.Context, tc taskctx.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		d = m.cfg.DefaultTimeout
	}
	return m.RunWithSemaphore(ctx, tc, func(runCtx context.Context) error {
		deadlineCtx, cancel := context.WithTimeout(runCtx, d)
		defer cancel()
		err := op(deadlineCtx)
		if errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) && err == nil {
			err = context.DeadlineExceeded
		}
		return err
	})
}

func (m *Manager) recordOutcome(ctx context.Context, err error, elapsed time.Duration) {
	m.latency.record(elapsed)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			m.metrics.timedOut.Add(1)
			if m.otel != nil {
				m.otel.timedOut.Add(ctx, 1)
			}
		} else {
			m.metrics.failed.Add(1)
			if m.otel != nil {
				m.otel.failed.Add(ctx, 1)
			}
		}
		return
	}
	m.metrics.completed.Add(1)
	if m.otel != nil {
		m.otel.completed.Add(ctx, 1)
	}
}

// RecordRetry lets composed wrappers (the resilience facade's retry
// layer) attribute a retry attempt to this manager's metrics.
func (m *Manager) RecordRetry(ctx context.Context) {
	m.metrics.retries.Add(1)
	if m.otel != nil {
		m.otel.retries.Add(ctx, 1)
	}
}

// ScheduleTaskWithPriority enqueues op for dispatch respecting
// backpressure rules, returning a Handle the caller can Wait on.
func (m *Manager) ScheduleTaskWithPriority(ctx context.Context, tc taskctx.Context, op func(context.Context) error, priority Priority, deadline time.Time) (*Handle, error) {
	load := m.LoadSignal()
	if load >= m.cfg.Backpressure.LowPriorityRejectionThreshold && priority == PriorityLow {
		m.metrics.overloadRejected.Add(1)
		if m.otel != nil {
			m.otel.rejected.Add(ctx, 1)
		}
		m.log.Warn(ctx, "rejected low-priority task under load",
			observe.Field{Key: "load_signal", Value: load},
		)
		return nil, ErrOverloadRejected
	}

	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if len(m.queue) >= m.cfg.Backpressure.MaxQueueSize {
		m.mu.Unlock()
		m.metrics.queueFullRejected.Add(1)
		if m.otel != nil {
			m.otel.rejected.Add(ctx, 1)
		}
		m.log.Warn(ctx, "rejected task: admission queue full",
			observe.Field{Key: "queue_size", Value: m.cfg.Backpressure.MaxQueueSize},
		)
		return nil, ErrQueueFull
	}

	m.seq++
	t := &task{
		id:         deriveTaskID(m.seq),
		priority:   priority,
		enqueuedAt: time.Now(),
		seq:        m.seq,
		deadline:   deadline,
		ctx:        tc,
		op:         op,
		done:       make(chan error, 1),
	}
	heap.Push(&m.queue, t)
	m.cond.Signal()
	m.mu.Unlock()

	m.metrics.submitted.Add(1)
	if m.otel != nil {
		m.otel.submitted.Add(ctx, 1)
	}

	return &Handle{done: t.done}, nil
}

func deriveTaskID(seq uint64) string {
	const digits = "0123456789abcdef"
	if seq == 0 {
		return "t0"
	}
	buf := make([]byte, 0, 20)
	buf = append(buf, 't')
	start := len(buf)
	for seq > 0 {
		buf = append(buf, digits[seq%16])
		seq /= 16
	}
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// dispatchLoop waits for the admission queue to be non-empty, then waits
// for a permit, then pops the currently highest-priority task — in that
// order, so the task removed is always the highest priority one queued
// at the moment the permit actually became available, not at the moment
// the queue first went non-empty.
func (m *Manager) dispatchLoop() {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.shuttingDown {
			m.cond.Wait()
		}
		empty := len(m.queue) == 0
		shuttingDown := m.shuttingDown
		m.mu.Unlock()

		if empty && shuttingDown {
			close(m.drained)
			return
		}
		if empty {
			continue
		}

		if err := m.acquirePermit(m.rootCtx); err != nil {
			// Shutdown cancelled rootCtx; drain whatever is left without
			// running it rather than spinning forever trying to acquire.
			m.mu.Lock()
			if len(m.queue) > 0 {
				t := heap.Pop(&m.queue).(*task)
				m.mu.Unlock()
				t.done <- err
				continue
			}
			m.mu.Unlock()
			continue
		}

		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			m.releasePermit()
			continue
		}
		t := heap.Pop(&m.queue).(*task)
		m.mu.Unlock()

		m.tasks.Go(func() error {
			return m.runDispatchedTask(t)
		})
	}
}

// runDispatchedTask runs t.op and reports its outcome on t.done for the
// caller holding the Handle. The returned error also reaches Shutdown via
// m.tasks (an errgroup.Group), so a caller draining the manager learns
// about the first dispatched task that failed instead of only nil/timeout.
func (m *Manager) runDispatchedTask(t *task) error {
	defer m.releasePermit()

	execCtx := m.rootCtx
	var cancel context.CancelFunc
	if !t.deadline.IsZero() {
		execCtx, cancel = context.WithDeadline(execCtx, t.deadline)
		defer cancel()
	}
	execCtx = taskctx.WithContext(execCtx, t.ctx)

	start := time.Now()
	err := t.op(execCtx)
	m.recordOutcome(execCtx, err, time.Since(start))

	t.done <- err
	return err
}

func (m *Manager) queueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// LoadSignal returns the manager's current normalised utilisation.
func (m *Manager) LoadSignal() float64 {
	m.mu.Lock()
	limit := m.currentLimit
	m.mu.Unlock()
	if limit <= 0 {
		return 1
	}
	load := float64(m.inFlight.Load()) / float64(limit)
	if load > 1 {
		load = 1
	}
	return load
}

// ConcurrencyLimit returns the manager's current effective concurrency
// ceiling, which may differ from cfg.MaxConcurrent once adaptive resizing
// has run.
func (m *Manager) ConcurrencyLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLimit
}

// GetCurrentContext is a thin forwarding convenience over
// taskctx.FromContext: Go has no continuation-local storage, so the
// ambient context is threaded explicitly through ctx rather than kept in
// manager-global state, per the "explicit parameter" fallback the design
// favors when task-local storage is unavailable.
func (m *Manager) GetCurrentContext(ctx context.Context) (taskctx.Context, bool) {
	return taskctx.FromContext(ctx)
}

// GetPerformanceMetrics returns a snapshot of the manager's counters and
// gauges.
func (m *Manager) GetPerformanceMetrics() Metrics {
	p50, p95, p99 := m.latency.percentiles()
	return Metrics{
		TasksSubmitted:          m.metrics.submitted.Load(),
		TasksCompleted:          m.metrics.completed.Load(),
		TasksFailed:             m.metrics.failed.Load(),
		TasksTimedOut:           m.metrics.timedOut.Load(),
		TasksRejected:           m.metrics.overloadRejected.Load() + m.metrics.queueFullRejected.Load(),
		RetriesTotal:            m.metrics.retries.Load(),
		InFlight:                m.inFlight.Load(),
		QueueDepth:              int64(m.queueDepth()),
		CurrentConcurrencyLimit: int64(m.ConcurrencyLimit()),
		LoadSignal:              m.LoadSignal(),
		P50Latency:              p50,
		P95Latency:              p95,
		P99Latency:              p99,
	}
}

// GetBackpressureMetrics returns the admission-side view of the manager.
func (m *Manager) GetBackpressureMetrics() BackpressureMetrics {
	return BackpressureMetrics{
		QueueDepth:                    m.queueDepth(),
		MaxQueueSize:                  m.cfg.Backpressure.MaxQueueSize,
		LoadSignal:                    m.LoadSignal(),
		LowPriorityRejectionThreshold: m.cfg.Backpressure.LowPriorityRejectionThreshold,
		OverloadRejected:              m.metrics.overloadRejected.Load(),
		QueueFullRejections:           m.metrics.queueFullRejected.Load(),
	}
}

// ResetMetrics zeroes all counters and the latency history. It does not
// affect in-flight tasks, the queue, or the concurrency limit.
func (m *Manager) ResetMetrics() {
	m.metrics.submitted.Store(0)
	m.metrics.completed.Store(0)
	m.metrics.failed.Store(0)
	m.metrics.timedOut.Store(0)
	m.metrics.overloadRejected.Store(0)
	m.metrics.queueFullRejected.Store(0)
	m.metrics.retries.Store(0)
	m.latency.reset()
}

// Shutdown stops accepting new submissions, drains the admission queue
// until empty or drainTimeout elapses, then cancels every still-running
// task and waits (bounded by ctx) for their cooperative exit. Idempotent.
//
// If ctx does not expire first, Shutdown returns the first non-nil error
// returned by any task dispatched from the admission queue since New (via
// m.tasks, an errgroup.Group), including tasks that finished before the
// drain began, so a caller can tell a clean run from one where a task
// failed. Errors from RunWithSemaphore/RunWithTimeout calls are not
// collected.
func (m *Manager) Shutdown(ctx context.Context, drainTimeout time.Duration) error {
	m.mu.Lock()
	alreadyShuttingDown := m.shuttingDown
	m.shuttingDown = true
	m.cond.Broadcast()
	m.mu.Unlock()

	if alreadyShuttingDown {
		<-m.drained
	} else {
		select {
		case <-m.drained:
		case <-time.After(drainTimeout):
		}
	}

	m.rootCancel()

	done := make(chan error, 1)
	go func() {
		m.wg.Wait()
		done <- m.tasks.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
