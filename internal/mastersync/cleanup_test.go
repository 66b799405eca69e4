package mastersync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplycatalog/ingestion/internal/queueing"
)

func TestCleanupScanExpiredFindsOldDLQEntries(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	queue := queueing.NewQueue(rdb, "test", "cleanup", queueing.WithRetryBackoff(time.Millisecond, time.Millisecond))

	msg, err := queueing.NewTaskMessage(queueing.KindParseSupplierFile, map[string]string{"x": "y"}, queueing.PriorityNormal)
	require.NoError(t, err)
	msg.MaxRetries = 1
	msg.RetryCount = 1
	require.NoError(t, queue.Enqueue(context.Background(), msg))

	claimed, err := queue.Claim(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, queue.Nack(context.Background(), claimed, assertableRetryableErr{}))

	dlqDepth, err := queue.DLQDepth(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), dlqDepth)

	cleanup := NewCleanup(map[string]*queueing.Queue{"cleanup": queue})
	expired, err := cleanup.ScanExpired(context.Background(), -time.Hour) // negative retention: everything is "expired"
	require.NoError(t, err)
	require.Len(t, expired["cleanup"], 1)
}

type assertableRetryableErr struct{}

func (assertableRetryableErr) Error() string { return "boom" }
