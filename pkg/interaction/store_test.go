// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStore interface {
	Store
	FlashStore
}

func storeImplementations(t *testing.T) map[string]func(t *testing.T) testStore {
	t.Helper()
	return map[string]func(t *testing.T) testStore{
		"memory": func(t *testing.T) testStore {
			t.Helper()
			s := NewMemoryStore()
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"redis": func(t *testing.T) testStore {
			t.Helper()
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client, "test:")
		},
	}
}

func testSession(ttl time.Duration) *Session {
	return &Session{
		UUID:        "9a8b7c6d-0000-4000-8000-000000000001",
		ClientID:    "c1",
		Params:      url.Values{"scope": {"openid email"}, "client_id": {"c1"}},
		RequestedAt: time.Now().Truncate(time.Second),
		ExpiresAt:   time.Now().Add(ttl),
	}
}

func TestStore_SaveGetDelete(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newStore(t)
			sess := testSession(time.Hour)

			_, err := store.Get(ctx, sess.UUID)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Save(ctx, sess))

			got, err := store.Get(ctx, sess.UUID)
			require.NoError(t, err)
			assert.Equal(t, sess.UUID, got.UUID)
			assert.Equal(t, sess.Params, got.Params)
			assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

			// Stored copies are independent of the caller's value.
			got.AccountID = "u1"
			again, err := store.Get(ctx, sess.UUID)
			require.NoError(t, err)
			assert.Empty(t, again.AccountID)

			require.NoError(t, store.Delete(ctx, sess.UUID))
			_, err = store.Get(ctx, sess.UUID)
			require.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, store.Delete(ctx, sess.UUID))
		})
	}
}

func TestStore_SaveKeepsExpiry(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newStore(t)
			sess := testSession(time.Hour)
			require.NoError(t, store.Save(ctx, sess))

			sess.AccountID = "u1"
			sess.MarkDone(PromptLogin)
			require.NoError(t, store.Save(ctx, sess))

			got, err := store.Get(ctx, sess.UUID)
			require.NoError(t, err)
			assert.Equal(t, "u1", got.AccountID)
			assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt), "saving never extends the interaction")
		})
	}
}

func TestStore_ExpiredSessionIsRejected(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sess := testSession(-time.Second)
			err := newStore(t).Save(context.Background(), sess)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Flash(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newStore(t)

			msg, err := store.TakeFlash(ctx, "failed:x")
			require.NoError(t, err)
			assert.Empty(t, msg)

			require.NoError(t, store.PutFlash(ctx, "failed:x", "Account suspended. left", time.Minute))

			msg, err = store.TakeFlash(ctx, "failed:x")
			require.NoError(t, err)
			assert.Equal(t, "Account suspended. left", msg)

			msg, err = store.TakeFlash(ctx, "failed:x")
			require.NoError(t, err)
			assert.Empty(t, msg, "flash messages are read once")
		})
	}
}

func TestRedisStore_TTLFollowsExpiry(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "test:")

	sess := testSession(10 * time.Minute)
	require.NoError(t, store.Save(context.Background(), sess))

	ttl := mr.TTL("test:interaction:" + sess.UUID)
	assert.LessOrEqual(t, ttl, 10*time.Minute)
	assert.Greater(t, ttl, 9*time.Minute)

	mr.FastForward(11 * time.Minute)
	_, err := store.Get(context.Background(), sess.UUID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Cleanup(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(WithCleanupInterval(5 * time.Millisecond))
	t.Cleanup(func() { _ = store.Close() })

	sess := testSession(20 * time.Millisecond)
	require.NoError(t, store.Save(context.Background(), sess))
	require.NoError(t, store.PutFlash(context.Background(), "k", "v", 20*time.Millisecond))

	assert.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.sessions) == 0 && len(store.flashes) == 0
	}, time.Second, 5*time.Millisecond)
}
