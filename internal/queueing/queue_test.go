package queueing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/supplycatalog/ingestion/pkg/apperrors"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewQueue(rdb, "ingestion", "parse_supplier_file"), mr
}

func TestEnqueueRejectsDuplicateTaskID(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	msg, err := NewTaskMessage(KindParseSupplierFile, map[string]string{"supplier_id": "s1"}, PriorityNormal)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, msg))

	dup := *msg
	err = q.Enqueue(ctx, &dup)
	require.ErrorIs(t, err, ErrDuplicateTask)
}

func TestClaimDrainsHighBeforeNormalBeforeLow(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	low, _ := NewTaskMessage(KindMatchItem, "low", PriorityLow)
	normal, _ := NewTaskMessage(KindMatchItem, "normal", PriorityNormal)
	high, _ := NewTaskMessage(KindMatchItem, "high", PriorityHigh)

	require.NoError(t, q.Enqueue(ctx, low))
	require.NoError(t, q.Enqueue(ctx, normal))
	require.NoError(t, q.Enqueue(ctx, high))

	first, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, high.TaskID, first.TaskID)

	second, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, normal.TaskID, second.TaskID)

	third, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, low.TaskID, third.TaskID)
}

func TestClaimTimesOutWithNothingPending(t *testing.T) {
	q, _ := newTestQueue(t)
	msg, err := q.Claim(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestAckRemovesTaskFromProcessing(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	msg, _ := NewTaskMessage(KindMatchItem, "x", PriorityNormal)
	require.NoError(t, q.Enqueue(ctx, msg))

	claimed, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, q.Ack(ctx, claimed.TaskID))

	inProgress, err := q.InProgressDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), inProgress)

	err = q.Ack(ctx, claimed.TaskID)
	require.ErrorIs(t, err, ErrNotClaimed)
}

func TestNackRetriesUntilExhaustedThenDLQs(t *testing.T) {
	q, _ := newTestQueue(t)
	q.retryBaseDelay = 0
	ctx := context.Background()

	msg, _ := NewTaskMessage(KindMatchItem, "x", PriorityNormal)
	msg.WithMaxRetries(2)
	require.NoError(t, q.Enqueue(ctx, msg))

	retryable := apperrors.Database("source temporarily unreachable")

	for i := 0; i < 2; i++ {
		claimed, err := q.Claim(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		require.NoError(t, q.Nack(ctx, claimed, retryable))

		_, _, err = q.Sweep(ctx)
		require.NoError(t, err)
	}

	claimed, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, 2, claimed.RetryCount)

	require.NoError(t, q.Nack(ctx, claimed, retryable))

	dlqDepth, err := q.DLQDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), dlqDepth)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), depth)
}

func TestNackNonRetryableGoesStraightToDLQ(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	msg, _ := NewTaskMessage(KindMatchItem, "x", PriorityNormal)
	require.NoError(t, q.Enqueue(ctx, msg))

	claimed, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Nack(ctx, claimed, apperrors.Validation("malformed payload")))

	dlqDepth, err := q.DLQDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), dlqDepth)
}

func TestSweepReclaimsExpiredProcessing(t *testing.T) {
	q, mr := newTestQueue(t)
	q.visibilityWindow = time.Millisecond
	ctx := context.Background()

	msg, _ := NewTaskMessage(KindMatchItem, "x", PriorityNormal)
	require.NoError(t, q.Enqueue(ctx, msg))

	claimed, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	mr.FastForward(time.Second)

	reclaimed, promoted, err := q.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, reclaimed)
	require.Equal(t, 0, promoted)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)
}

func TestRequeueResetsRetryCount(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	msg, _ := NewTaskMessage(KindMatchItem, "x", PriorityNormal)
	msg.WithMaxRetries(1)
	require.NoError(t, q.Enqueue(ctx, msg))

	claimed, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, claimed, errors.New("boom")))

	dlqDepth, err := q.DLQDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), dlqDepth)

	require.NoError(t, q.Requeue(ctx, msg.TaskID))

	reclaimed, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	require.Equal(t, 0, reclaimed.RetryCount)
}
