package queueing

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

// ErrDuplicateTask is returned by Enqueue when a task_id has already been
// enqueued on this queue; spec.md §4.1 requires idempotent enqueue.
var ErrDuplicateTask = apperrors.Validation("duplicate task_id").WithCode("E_DUPLICATE_TASK")

// ErrNotClaimed is returned by Ack/Nack when the task_id is not currently
// in the processing set (already acked, expired and re-queued, or unknown).
var ErrNotClaimed = apperrors.NotFound("task not in processing set").WithCode("E_NOT_CLAIMED")

// Queue is a priority-aware, durable work queue backed by Redis lists,
// sorted sets and hashes. It is grounded on the teacher's in-memory
// consumer/worker/worker.go job channel, generalized to a durable backend
// per the flyingrobots QueueBackend contract (Enqueue/Dequeue/Ack/Nack/
// Length/Move) from other_examples and the original's arq task queue.
type Queue struct {
	rdb              *redis.Client
	namespace        string
	name             string
	visibilityWindow time.Duration
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithVisibilityWindow sets how long a claimed task may run before Sweep
// reclaims it back onto its pending lane. Default 10 minutes.
func WithVisibilityWindow(d time.Duration) Option {
	return func(q *Queue) { q.visibilityWindow = d }
}

// WithRetryBackoff sets the exponential backoff bounds applied by Nack.
// Default base=1s, max=300s, matching worker.retry_base_delay/retry_max_delay.
func WithRetryBackoff(base, max time.Duration) Option {
	return func(q *Queue) { q.retryBaseDelay, q.retryMaxDelay = base, max }
}

// NewQueue constructs a Queue named name under the given namespace
// (config.Queue.Namespace, default "ingestion"), backed by rdb.
func NewQueue(rdb *redis.Client, namespace, name string, opts ...Option) *Queue {
	q := &Queue{
		rdb:              rdb,
		namespace:        namespace,
		name:             name,
		visibilityWindow: 10 * time.Minute,
		retryBaseDelay:   time.Second,
		retryMaxDelay:    300 * time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) key(parts ...string) string {
	key := q.namespace + ":" + q.name
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (q *Queue) pendingKey(p Priority) string { return q.key("pending", string(p)) }
func (q *Queue) processingKey() string        { return q.key("processing") }
func (q *Queue) delayedKey() string           { return q.key("delayed") }
func (q *Queue) dlqKey() string               { return q.key("dlq") }
func (q *Queue) taskKey(taskID string) string { return q.key("task", taskID) }
func (q *Queue) idempKey(taskID string) string { return q.key("idemp", taskID) }

// priorityLanes are drained high to low by Claim.
var priorityLanes = []Priority{PriorityHigh, PriorityNormal, PriorityLow}

// Enqueue adds msg to its priority lane, rejecting a repeated task_id with
// ErrDuplicateTask.
func (q *Queue) Enqueue(ctx context.Context, msg *TaskMessage) error {
	set, err := q.rdb.SetNX(ctx, q.idempKey(msg.TaskID), 1, 0).Result()
	if err != nil {
		return apperrors.Database("setnx idempotency key").Wrap(err)
	}
	if !set {
		return ErrDuplicateTask
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Validation("marshal task message").Wrap(err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.taskKey(msg.TaskID), raw, 0)
	pipe.LPush(ctx, q.pendingKey(msg.Priority), msg.TaskID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Database("enqueue task").Wrap(err)
	}
	return nil
}

// Claim blocks up to timeout for the next task across priority lanes
// (high, then normal, then low), moving it into the processing set with a
// visibility deadline. Returns nil, nil on timeout with nothing claimed.
func (q *Queue) Claim(ctx context.Context, timeout time.Duration) (*TaskMessage, error) {
	deadline := time.Now().Add(timeout)
	for {
		for _, p := range priorityLanes {
			taskID, err := q.rdb.RPop(ctx, q.pendingKey(p)).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, apperrors.Database("claim: rpop pending lane").Wrap(err)
			}
			return q.beginProcessing(ctx, taskID)
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (q *Queue) beginProcessing(ctx context.Context, taskID string) (*TaskMessage, error) {
	raw, err := q.rdb.Get(ctx, q.taskKey(taskID)).Result()
	if errors.Is(err, redis.Nil) {
		// task metadata vanished (operator cleanup); skip it silently.
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Database("claim: load task metadata").Wrap(err)
	}

	var msg TaskMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, apperrors.Parser("claim: unmarshal task metadata").Wrap(err)
	}

	deadline := float64(time.Now().Add(q.visibilityWindow).UnixMilli())
	if err := q.rdb.ZAdd(ctx, q.processingKey(), &redis.Z{Score: deadline, Member: taskID}).Err(); err != nil {
		return nil, apperrors.Database("claim: mark processing").Wrap(err)
	}
	return &msg, nil
}

// Ack removes a successfully completed task from the processing set and its
// bookkeeping keys.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	removed, err := q.rdb.ZRem(ctx, q.processingKey(), taskID).Result()
	if err != nil {
		return apperrors.Database("ack: zrem processing").Wrap(err)
	}
	if removed == 0 {
		return ErrNotClaimed
	}
	pipe := q.rdb.TxPipeline()
	pipe.Del(ctx, q.taskKey(taskID))
	pipe.Del(ctx, q.idempKey(taskID))
	_, err = pipe.Exec(ctx)
	if err != nil {
		return apperrors.Database("ack: cleanup task keys").Wrap(err)
	}
	return nil
}

// Nack reports a failed task. If msg still has retry budget, it is
// re-enqueued after an exponential backoff delay; past max_retries it is
// moved to the dead-letter queue, per spec.md §4.1/§7.
func (q *Queue) Nack(ctx context.Context, msg *TaskMessage, cause error) error {
	if _, err := q.rdb.ZRem(ctx, q.processingKey(), msg.TaskID).Result(); err != nil {
		return apperrors.Database("nack: zrem processing").Wrap(err)
	}

	if msg.Exhausted() || !apperrors.IsRetryable(cause) {
		return q.moveToDLQ(ctx, msg, cause)
	}

	msg.RetryCount++
	raw, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Validation("marshal retried task").Wrap(err)
	}

	delay := q.backoff(msg.RetryCount)
	readyAt := float64(time.Now().Add(delay).UnixMilli())

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.taskKey(msg.TaskID), raw, 0)
	pipe.ZAdd(ctx, q.delayedKey(), &redis.Z{Score: readyAt, Member: msg.TaskID})
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Database("nack: schedule retry").Wrap(err)
	}
	return nil
}

func (q *Queue) moveToDLQ(ctx context.Context, msg *TaskMessage, cause error) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Validation("marshal dlq task").Wrap(err)
	}
	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.taskKey(msg.TaskID), raw, 0)
	pipe.LPush(ctx, q.dlqKey(), msg.TaskID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Database("nack: move to dlq").Wrap(err)
	}
	return nil
}

// backoff returns base*2^(retryCount-1), capped at retryMaxDelay.
func (q *Queue) backoff(retryCount int) time.Duration {
	d := time.Duration(float64(q.retryBaseDelay) * math.Pow(2, float64(retryCount-1)))
	if d > q.retryMaxDelay {
		return q.retryMaxDelay
	}
	if d < q.retryBaseDelay {
		return q.retryBaseDelay
	}
	return d
}

// Sweep reclaims processing entries past their visibility deadline back
// onto the high-priority pending lane, and promotes delayed retries whose
// backoff has elapsed. It is called periodically by the Pool's maintenance
// loop and is safe to call concurrently with Claim/Ack/Nack.
func (q *Queue) Sweep(ctx context.Context) (reclaimed, promoted int, err error) {
	now := float64(time.Now().UnixMilli())

	expired, err := q.rdb.ZRangeByScore(ctx, q.processingKey(), &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatFloat(now, 'f', 0, 64)}).Result()
	if err != nil {
		return 0, 0, apperrors.Database("sweep: scan expired processing").Wrap(err)
	}
	for _, taskID := range expired {
		if err := q.rdb.ZRem(ctx, q.processingKey(), taskID).Err(); err != nil {
			return reclaimed, promoted, apperrors.Database("sweep: zrem expired").Wrap(err)
		}
		if err := q.rdb.LPush(ctx, q.pendingKey(PriorityHigh), taskID).Err(); err != nil {
			return reclaimed, promoted, apperrors.Database("sweep: requeue expired").Wrap(err)
		}
		reclaimed++
	}

	ready, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatFloat(now, 'f', 0, 64)}).Result()
	if err != nil {
		return reclaimed, 0, apperrors.Database("sweep: scan ready delayed").Wrap(err)
	}
	for _, taskID := range ready {
		raw, err := q.rdb.Get(ctx, q.taskKey(taskID)).Result()
		if errors.Is(err, redis.Nil) {
			q.rdb.ZRem(ctx, q.delayedKey(), taskID)
			continue
		}
		if err != nil {
			return reclaimed, promoted, apperrors.Database("sweep: load delayed task").Wrap(err)
		}
		var msg TaskMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return reclaimed, promoted, apperrors.Parser("sweep: unmarshal delayed task").Wrap(err)
		}
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, q.delayedKey(), taskID)
		pipe.LPush(ctx, q.pendingKey(msg.Priority), taskID)
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, promoted, apperrors.Database("sweep: promote delayed").Wrap(err)
		}
		promoted++
	}

	return reclaimed, promoted, nil
}

// Requeue is the operator action that moves a task out of the DLQ back
// onto its pending lane, resetting retry_count to 0. It is never automatic.
func (q *Queue) Requeue(ctx context.Context, taskID string) error {
	removed, err := q.rdb.LRem(ctx, q.dlqKey(), 1, taskID).Result()
	if err != nil {
		return apperrors.Database("requeue: lrem dlq").Wrap(err)
	}
	if removed == 0 {
		return ErrNotClaimed
	}

	raw, err := q.rdb.Get(ctx, q.taskKey(taskID)).Result()
	if err != nil {
		return apperrors.Database("requeue: load task metadata").Wrap(err)
	}
	var msg TaskMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return apperrors.Parser("requeue: unmarshal task metadata").Wrap(err)
	}
	msg.RetryCount = 0

	updated, err := json.Marshal(&msg)
	if err != nil {
		return apperrors.Validation("requeue: marshal task metadata").Wrap(err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.taskKey(taskID), updated, 0)
	pipe.LPush(ctx, q.pendingKey(msg.Priority), taskID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Database("requeue: re-enqueue").Wrap(err)
	}
	return nil
}

// Depth returns the number of tasks pending across all priority lanes.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	var total int64
	for _, p := range priorityLanes {
		n, err := q.rdb.LLen(ctx, q.pendingKey(p)).Result()
		if err != nil {
			return 0, apperrors.Database("depth: llen pending lane").Wrap(err)
		}
		total += n
	}
	return total, nil
}

// DLQDepth returns the number of tasks sitting in the dead-letter queue.
func (q *Queue) DLQDepth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.dlqKey()).Result()
	if err != nil {
		return 0, apperrors.Database("dlq depth: llen dlq").Wrap(err)
	}
	return n, nil
}

// ListDLQ returns every task currently sitting in the dead-letter queue,
// read-only, for operator-visible reporting (internal/mastersync's cleanup
// sub-operation scans this for entries past a retention window).
func (q *Queue) ListDLQ(ctx context.Context) ([]TaskMessage, error) {
	taskIDs, err := q.rdb.LRange(ctx, q.dlqKey(), 0, -1).Result()
	if err != nil {
		return nil, apperrors.Database("list dlq: lrange").Wrap(err)
	}
	if len(taskIDs) == 0 {
		return nil, nil
	}

	raws, err := q.rdb.MGet(ctx, taskKeys(q, taskIDs)...).Result()
	if err != nil {
		return nil, apperrors.Database("list dlq: mget task metadata").Wrap(err)
	}

	out := make([]TaskMessage, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var msg TaskMessage
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func taskKeys(q *Queue, taskIDs []string) []string {
	keys := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		keys[i] = q.taskKey(id)
	}
	return keys
}

// InProgressDepth returns the number of tasks currently claimed and being
// worked, regardless of whether their visibility deadline has elapsed.
func (q *Queue) InProgressDepth(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.processingKey()).Result()
	if err != nil {
		return 0, apperrors.Database("in-progress depth: zcard processing").Wrap(err)
	}
	return n, nil
}
