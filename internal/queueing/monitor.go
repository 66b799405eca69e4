package queueing

import (
	"context"
	"fmt"
)

// DepthWarningThreshold is the pending-depth value past which Monitor.Check
// reports a warning, per spec.md §6's status interface.
const DepthWarningThreshold = 100

// Snapshot is a point-in-time reading of a Queue's depth, grounded on the
// teacher's WorkerPoolMetrics shape (queue depth, active/idle workers)
// reduced to the fields the status HTTP endpoint (spec.md §6) exposes.
type Snapshot struct {
	QueueName       string `json:"queue_name"`
	Depth           int64  `json:"depth"`
	InProgressDepth int64  `json:"in_progress_depth"`
	DLQDepth        int64  `json:"dlq_depth"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Monitor reads depth/in-progress/DLQ-depth observability for one or more
// Queues, grounded on pkg/concurrency.WorkerPoolMetrics, and republishes the
// same readings as Prometheus gauges (metrics.go) the way the teacher's
// consumer/metrics package exposes WorkerPoolQueueSize/WorkerPoolActiveWorkers.
type Monitor struct {
	queues map[string]*Queue
}

// NewMonitor builds a Monitor over the given named queues.
func NewMonitor(queues map[string]*Queue) *Monitor {
	return &Monitor{queues: queues}
}

// Snapshot reads depth/in-progress/DLQ-depth for the named queue, flagging
// a non-empty DLQ or a pending depth over DepthWarningThreshold.
func (m *Monitor) Snapshot(ctx context.Context, name string) (*Snapshot, error) {
	q, ok := m.queues[name]
	if !ok {
		return nil, fmt.Errorf("queueing: unknown queue %q", name)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		return nil, err
	}
	inProgress, err := q.InProgressDepth(ctx)
	if err != nil {
		return nil, err
	}
	dlq, err := q.DLQDepth(ctx)
	if err != nil {
		return nil, err
	}

	queueDepth.WithLabelValues(name).Set(float64(depth))
	queueInProgressDepth.WithLabelValues(name).Set(float64(inProgress))
	queueDLQDepth.WithLabelValues(name).Set(float64(dlq))

	snap := &Snapshot{
		QueueName:       name,
		Depth:           depth,
		InProgressDepth: inProgress,
		DLQDepth:        dlq,
	}
	if dlq > 0 {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("%d task(s) in dead-letter queue", dlq))
	}
	if depth > DepthWarningThreshold {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("pending depth %d exceeds warning threshold %d", depth, DepthWarningThreshold))
	}
	return snap, nil
}

// SnapshotAll returns a Snapshot for every queue the Monitor was built with.
func (m *Monitor) SnapshotAll(ctx context.Context) (map[string]*Snapshot, error) {
	out := make(map[string]*Snapshot, len(m.queues))
	for name := range m.queues {
		snap, err := m.Snapshot(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = snap
	}
	return out, nil
}
