package taskmanager

import (
	"container/heap"
	"context"
	"time"

	"github.com/jonwraymond/taskguard/taskctx"
)

// Priority is a task's admission class. Higher values are admitted
// first whenever a permit becomes available.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// task is one unit of work pending or running inside the manager.
type task struct {
	id         string
	priority   Priority
	enqueuedAt time.Time
	seq        uint64 // tie-break for FIFO within a priority class
	deadline   time.Time
	ctx        taskctx.Context
	op         func(context.Context) error
	done       chan error
	index      int // heap.Interface bookkeeping
}

// priorityQueue implements container/heap's documented recipe: a slice
// with Less/Swap/Len plus Push/Pop, ordered so the highest priority (and,
// within a priority class, the earliest enqueued) task sorts first.
type priorityQueue []*task

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *priorityQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

var _ heap.Interface = (*priorityQueue)(nil)
