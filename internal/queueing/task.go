// Package queueing implements the ingestion platform's durable work-queue
// protocol: a priority-aware Redis list queue with visibility-timeout
// claiming, exponential-backoff retry, and a dead-letter queue, plus the
// fixed-size worker pool that drains it.
//
// It replaces the teacher's in-memory Sarama consumer channel
// (consumer/worker/worker.go) and auto-scaling pool
// (pkg/concurrency/worker_pool.go) with a durable backend modeled on
// other_examples' flyingrobots QueueBackend contract
// (Enqueue/Dequeue/Ack/Nack/Length/Move) and the original system's
// arq-based task queue.
package queueing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Priority is the queue lane a task is enqueued onto. Claim drains High
// before Normal before Low.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Kind identifies the task handler a TaskMessage should be dispatched to.
type Kind string

const (
	KindParseSupplierFile Kind = "parse_supplier_file"
	KindMatchItem         Kind = "match_item"
	KindEnrichItem        Kind = "enrich_item"
	KindRecalcAggregate   Kind = "recalc_aggregate"
	KindMasterSync        Kind = "master_sync"
)

// TaskMessage is the common envelope carried through every queue, per
// spec.md §4.1/§6.
type TaskMessage struct {
	TaskID     string          `json:"task_id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	Priority   Priority        `json:"priority"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewTaskMessage builds a TaskMessage with a generated task id and the
// default retry budget (3), ready for Queue.Enqueue.
func NewTaskMessage(kind Kind, payload any, priority Priority) (*TaskMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &TaskMessage{
		TaskID:     uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		RetryCount: 0,
		MaxRetries: 3,
		Priority:   priority,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// WithMaxRetries overrides the default retry budget; spec.md §6 bounds it
// to [1,10].
func (m *TaskMessage) WithMaxRetries(n int) *TaskMessage {
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	m.MaxRetries = n
	return m
}

// Exhausted reports whether another failure should move the task to the DLQ
// rather than retry it.
func (m *TaskMessage) Exhausted() bool {
	return m.RetryCount >= m.MaxRetries
}
