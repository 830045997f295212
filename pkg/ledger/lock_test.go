// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "test:", time.Minute, time.Millisecond), mr
}

func TestKeyedMutex_Exclusive(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	var inside, maxInside atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(context.Background(), "k")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks, "unused locks are dropped")
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	unlockA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		defer close(done)
		unlock, err := km.Lock(context.Background(), "b")
		if assert.NoError(t, err) {
			unlock()
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestKeyedMutex_WaiterHonoursContext(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	unlock, err := km.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	km.mu.Lock()
	assert.Empty(t, km.locks, "an abandoned wait does not leak its entry")
	km.mu.Unlock()

	unlock, err = km.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

func TestLockKey_Unambiguous(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, lockKey("a:b", "c"), lockKey("a", "b:c"))
	assert.Equal(t, "u1:c1", lockKey("u1", "c1"))
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	t.Parallel()

	locker, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "u1:c1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:authorization:u1:c1"))
	assert.Positive(t, mr.TTL("test:lock:authorization:u1:c1"))

	release()
	assert.False(t, mr.Exists("test:lock:authorization:u1:c1"))

	release, err = locker.Acquire(ctx, "u1:c1")
	require.NoError(t, err)
	release()
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	t.Parallel()

	locker, _ := newTestLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	t.Parallel()

	locker, mr := newTestLocker(t)
	key := "test:lock:authorization:k"

	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)

	// The lock expired and another holder took it over.
	require.NoError(t, mr.Set(key, "someone-else"))

	release()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_Defaults(t *testing.T) {
	t.Parallel()

	l := NewRedisLocker(nil, "", 0, 0)
	assert.Equal(t, DefaultLockTTL, l.ttl)
	assert.Equal(t, DefaultLockRetry, l.retry)
}
