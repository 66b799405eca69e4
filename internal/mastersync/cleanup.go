package mastersync

import (
	"context"
	"time"

	"github.com/supplycatalog/ingestion/internal/queueing"
)

// ExpiredDLQEntry is one dead-letter task older than the retention window,
// surfaced for operator review.
type ExpiredDLQEntry struct {
	TaskID     string    `json:"task_id"`
	Kind       string    `json:"kind"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
	Age        string    `json:"age"`
}

// Cleanup reports expired DLQ entries without deleting them — a feature
// recovered from the original's src/tasks/cleanup_tasks (an independent
// periodic job from the retry/master-sync tasks), kept read-only here since
// spec.md never describes automatic DLQ eviction.
type Cleanup struct {
	queues map[string]*queueing.Queue
}

// NewCleanup builds a Cleanup over the given named queues.
func NewCleanup(queues map[string]*queueing.Queue) *Cleanup {
	return &Cleanup{queues: queues}
}

// ScanExpired lists DLQ entries older than retention across every queue,
// grouped by queue name.
func (c *Cleanup) ScanExpired(ctx context.Context, retention time.Duration) (map[string][]ExpiredDLQEntry, error) {
	cutoff := time.Now().UTC().Add(-retention)
	out := make(map[string][]ExpiredDLQEntry)

	for name, q := range c.queues {
		entries, err := q.ListDLQ(ctx)
		if err != nil {
			return nil, err
		}
		var expired []ExpiredDLQEntry
		for _, msg := range entries {
			if msg.EnqueuedAt.After(cutoff) {
				continue
			}
			expired = append(expired, ExpiredDLQEntry{
				TaskID:     msg.TaskID,
				Kind:       string(msg.Kind),
				EnqueuedAt: msg.EnqueuedAt,
				RetryCount: msg.RetryCount,
				MaxRetries: msg.MaxRetries,
				Age:        time.Since(msg.EnqueuedAt).Round(time.Second).String(),
			})
		}
		if len(expired) > 0 {
			out[name] = expired
		}
	}
	return out, nil
}
