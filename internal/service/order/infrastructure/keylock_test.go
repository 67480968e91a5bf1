package infrastructure

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	var active int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(ctx, 7)
			if err != nil {
				t.Error(err)
				return
			}
			defer release()
			if atomic.AddInt32(&active, 1) != 1 {
				t.Error("two holders inside the same critical section")
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	release1, err := k.Acquire(ctx, 1)
	require.NoError(t, err)
	defer release1()

	done := make(chan struct{})
	go func() {
		release2, err := k.Acquire(ctx, 2)
		if err == nil {
			release2()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedMutexReleaseIsIdempotent(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	release, err := k.Acquire(ctx, 1)
	require.NoError(t, err)
	release()
	release()

	// 重复释放后锁仍然可用
	release, err = k.Acquire(ctx, 1)
	require.NoError(t, err)
	release()
}

func TestKeyedMutexCancelledContext(t *testing.T) {
	k := NewKeyedMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := k.Acquire(ctx, 1)
	assert.Error(t, err)
}

func TestKeyedMutexReclaimsIdleEntries(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	release, err := k.Acquire(ctx, 1)
	require.NoError(t, err)
	release()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
