// Package mastersync implements the master-sync orchestrator: it reads the
// master supplier directory sheet, reconciles it against the suppliers
// table (insert/update/deactivate/skip), fans out a parse_task per active
// supplier, and publishes progress to a shared status record pollable by
// internal/httpapi.
//
// Grounded on the teacher's cmd/order-service wiring style and
// pkg/concurrency scheduling idiom, plus the original's
// scripts/monitor_queue.py / scripts/enqueue_task.py for the progress
// status contract shape.
package mastersync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// State is the orchestrator's current phase, published for external pollers.
type State string

const (
	StateIdle                State = "idle"
	StateSyncingMaster       State = "syncing_master"
	StateProcessingSuppliers State = "processing_suppliers"
)

// Status is the shared key-value progress record spec.md §4.7 describes.
type Status struct {
	State           State     `json:"state"`
	TaskID          string    `json:"task_id"`
	StartedAt       time.Time `json:"started_at"`
	ProgressCurrent int       `json:"progress_current"`
	ProgressTotal   int       `json:"progress_total"`
}

// StatusStore persists the single current Status record and the
// single-flight advisory lock in Redis.
type StatusStore struct {
	rdb       *redis.Client
	statusKey string
	lockKey   string
}

// NewStatusStore builds a StatusStore under namespace (e.g. "ingestion").
func NewStatusStore(rdb *redis.Client, namespace string) *StatusStore {
	return &StatusStore{
		rdb:       rdb,
		statusKey: namespace + ":mastersync:status",
		lockKey:   namespace + ":mastersync:lock",
	}
}

// Get returns the current status, or an idle status if none has been
// published yet.
func (s *StatusStore) Get(ctx context.Context) (*Status, error) {
	raw, err := s.rdb.Get(ctx, s.statusKey).Result()
	if err == redis.Nil {
		return &Status{State: StateIdle}, nil
	}
	if err != nil {
		return nil, apperrors.Database("get mastersync status").Wrap(err)
	}
	var st Status
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, apperrors.Database("unmarshal mastersync status").Wrap(err)
	}
	return &st, nil
}

// Set publishes st as the current status.
func (s *StatusStore) Set(ctx context.Context, st *Status) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return apperrors.Validation("marshal mastersync status").Wrap(err)
	}
	if err := s.rdb.Set(ctx, s.statusKey, raw, 0).Err(); err != nil {
		return apperrors.Database("set mastersync status").Wrap(err)
	}
	return nil
}

// ErrSyncInProgress is returned by TryLock when another orchestrator run
// already holds the single-flight lock.
var ErrSyncInProgress = apperrors.Validation("sync already in progress").WithCode("E_SYNC_IN_PROGRESS")

// TryLock acquires the single-flight advisory lock (SET NX PX) with taskID
// as its holder value (spec.md §5's single-flight requirement). Returns
// ErrSyncInProgress if another run already holds it.
func (s *StatusStore) TryLock(ctx context.Context, taskID string, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, s.lockKey, taskID, ttl).Result()
	if err != nil {
		return apperrors.Database("acquire mastersync lock").Wrap(err)
	}
	if !ok {
		return ErrSyncInProgress
	}
	return nil
}

// releaseScript deletes lockKey only if it still holds the value this
// holder set, so a lock that expired and was re-acquired by a later run is
// never released out from under it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Unlock releases the single-flight lock if taskID still owns it.
func (s *StatusStore) Unlock(ctx context.Context, taskID string) error {
	if err := s.rdb.Eval(ctx, releaseScript, []string{s.lockKey}, taskID).Err(); err != nil && err != redis.Nil {
		return apperrors.Database("release mastersync lock").Wrap(err)
	}
	return nil
}
