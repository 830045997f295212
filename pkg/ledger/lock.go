// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tryextra/extra-oidc/pkg/logger"
)

// Default lock timings.
const (
	DefaultLockTTL   = 10 * time.Second
	DefaultLockRetry = 25 * time.Millisecond
)

// ErrLockNotAcquired is returned when the context ends while waiting for a lock.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker serializes writers across processes.
type Locker interface {
	// Acquire blocks until the lock on key is held or ctx is done.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedMutex is a set of in-process mutexes created on demand and dropped when unused.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	// sem holds a token while the key is locked.
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is held or ctx is done, and returns the unlock function.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{sem: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		k.drop(key, l)
		return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
	}

	return func() {
		<-l.sem
		k.drop(key, l)
	}, nil
}

func (k *KeyedMutex) drop(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// releaseScript deletes the lock only when it still carries the caller's token,
// so an expired holder cannot release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker is a Locker on a Redis key set with NX and an expiry.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	retry     time.Duration
}

// NewRedisLocker creates a RedisLocker. Zero durations select the defaults.
func NewRedisLocker(client redis.UniversalClient, keyPrefix string, ttl, retry time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if retry <= 0 {
		retry = DefaultLockRetry
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		retry:     retry,
	}
}

// Acquire implements Locker.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := r.keyPrefix + "lock:authorization:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to set lock %s: %w", redisKey, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrLockNotAcquired, redisKey, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// The caller's context may already be cancelled; the lock must still go.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.ttl)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
			logger.Warnw("failed to release lock", "key", redisKey, "error", err)
		}
	}, nil
}
