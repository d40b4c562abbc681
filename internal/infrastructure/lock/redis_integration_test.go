//go:build redis_integration

package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	l := NewRedisLocker(rdb, RedisOptions{Prefix: "test:lock:", TTL: time.Second, RetryInterval: 10 * time.Millisecond}, zap.NewNop())

	unlock, err := l.Lock(ctx, "claim-1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "claim-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	again, err := l.Lock(ctx, "claim-1")
	require.NoError(t, err)
	again()

	// An expired lock is reclaimed, and the stale holder's release is a no-op.
	stale, err := l.Lock(ctx, "claim-2")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	fresh, err := l.Lock(ctx, "claim-2")
	require.NoError(t, err)
	stale()
	exists, err := rdb.Exists(ctx, "test:lock:claim-2").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	fresh()
}
