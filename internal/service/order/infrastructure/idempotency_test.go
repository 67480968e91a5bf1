package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGuard(t *testing.T) (*RedisIdempotencyGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyGuard(client, time.Minute), mr
}

func TestGuardUnseenKey(t *testing.T) {
	guard, _ := setupGuard(t)

	_, seen, err := guard.Seen(context.Background(), "k1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuardRecordAndReplay(t *testing.T) {
	guard, mr := setupGuard(t)
	ctx := context.Background()

	require.NoError(t, guard.Record(ctx, "k1", 42))

	orderID, seen, err := guard.Seen(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, int64(42), orderID)

	ttl := mr.TTL("orderhub:idem:k1")
	assert.Equal(t, time.Minute, ttl)
}

func TestGuardFirstWriterWins(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	require.NoError(t, guard.Record(ctx, "k1", 42))
	require.NoError(t, guard.Record(ctx, "k1", 99))

	orderID, seen, err := guard.Seen(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, int64(42), orderID)
}

func TestGuardKeysAreIndependent(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	require.NoError(t, guard.Record(ctx, "k1", 42))

	_, seen, err := guard.Seen(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, seen)
}
