// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go

// ErrNotFound is returned for interactions that do not exist or have expired.
var ErrNotFound = errors.New("interaction not found")

// Store persists interaction sessions by uuid.
type Store interface {
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, uuid string) (*Session, error)

	// Save stores the session for its remaining lifetime. Saving never extends
	// ExpiresAt; an already expired session is rejected with ErrNotFound.
	Save(ctx context.Context, s *Session) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, uuid string) error
}

// FlashStore keeps short-lived messages that are read once.
type FlashStore interface {
	// PutFlash stores msg under key for ttl.
	PutFlash(ctx context.Context, key, msg string, ttl time.Duration) error

	// TakeFlash returns and removes the message under key, or "" when there is none.
	TakeFlash(ctx context.Context, key string) (string, error)
}

// DefaultCleanupInterval is how often MemoryStore drops expired entries.
const DefaultCleanupInterval = time.Minute

type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStore is an in-process Store and FlashStore. Sessions are stored as
// JSON so callers never share mutable state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*timedEntry[[]byte]
	flashes  map[string]*timedEntry[string]

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often expired entries are removed.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(m *MemoryStore) {
		m.cleanupInterval = interval
	}
}

// NewMemoryStore creates a MemoryStore and starts its cleanup goroutine.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	m := &MemoryStore{
		sessions:        make(map[string]*timedEntry[[]byte]),
		flashes:         make(map[string]*timedEntry[string]),
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.cleanupLoop()

	return m
}

// Close stops the cleanup goroutine.
func (m *MemoryStore) Close() error {
	close(m.stopCleanup)
	<-m.cleanupDone
	return nil
}

func (m *MemoryStore) cleanupLoop() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCleanup:
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

func (m *MemoryStore) cleanupExpired() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range m.sessions {
		if now.After(v.expiresAt) {
			delete(m.sessions, k)
		}
	}
	for k, v := range m.flashes {
		if now.After(v.expiresAt) {
			delete(m.flashes, k)
		}
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, uuid string) (*Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[uuid]
	m.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return decodeSession(entry.value)
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s.Expired(time.Now()) {
		return ErrNotFound
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode interaction: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UUID] = &timedEntry[[]byte]{value: data, expiresAt: s.ExpiresAt}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, uuid)
	return nil
}

// PutFlash implements FlashStore.
func (m *MemoryStore) PutFlash(_ context.Context, key, msg string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flashes[key] = &timedEntry[string]{value: msg, expiresAt: time.Now().Add(ttl)}
	return nil
}

// TakeFlash implements FlashStore.
func (m *MemoryStore) TakeFlash(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.flashes[key]
	if !ok {
		return "", nil
	}
	delete(m.flashes, key)
	if time.Now().After(entry.expiresAt) {
		return "", nil
	}
	return entry.value, nil
}

// RedisStore is a Store and FlashStore shared by every replica.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a RedisStore. Keys are namespaced with keyPrefix.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStore) sessionKey(uuid string) string {
	return r.keyPrefix + "interaction:" + uuid
}

func (r *RedisStore) flashKey(key string) string {
	return r.keyPrefix + "flash:" + key
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, uuid string) (*Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(uuid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load interaction: %w", err)
	}

	s, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	if s.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return s, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ttl := s.RemainingTTL(time.Now())
	if ttl <= 0 {
		return ErrNotFound
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode interaction: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(s.UUID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}
	return nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, uuid string) error {
	if err := r.client.Del(ctx, r.sessionKey(uuid)).Err(); err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}
	return nil
}

// PutFlash implements FlashStore.
func (r *RedisStore) PutFlash(ctx context.Context, key, msg string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.flashKey(key), msg, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store flash message: %w", err)
	}
	return nil
}

// TakeFlash implements FlashStore.
func (r *RedisStore) TakeFlash(ctx context.Context, key string) (string, error) {
	msg, err := r.client.GetDel(ctx, r.flashKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read flash message: %w", err)
	}
	return msg, nil
}

func decodeSession(data []byte) (*Session, error) {
	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode interaction: %w", err)
	}
	return s, nil
}

// Compile-time interface checks.
var (
	_ Store      = (*MemoryStore)(nil)
	_ FlashStore = (*MemoryStore)(nil)
	_ Store      = (*RedisStore)(nil)
	_ FlashStore = (*RedisStore)(nil)
)
