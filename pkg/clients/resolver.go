// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package clients resolves OAuth client ids into client records.
//
// Records are read through a process-wide cache that has no expiry. Entries are
// dropped only by Invalidate, which is driven by directory change notifications.
package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tryextra/extra-oidc/pkg/directory"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

// ErrNotFound is returned when the directory reports the client absent or its id malformed.
var ErrNotFound = errors.New("client not found")

// invalidatingEvents are the directory events that drop a cached record.
var invalidatingEvents = map[string]bool{
	"updated": true,
	"patched": true,
	"removed": true,
}

// DefaultFetchTimeout bounds a directory lookup shared by concurrent callers.
const DefaultFetchTimeout = 10 * time.Second

// CacheObserver receives cache activity. Implementations must be safe for concurrent use.
type CacheObserver interface {
	ClientCacheHit()
	ClientCacheMiss()
	ClientCacheInvalidated()
}

// Resolver maps client ids to records.
type Resolver struct {
	clients      directory.Clients
	observer     CacheObserver
	fetchTimeout time.Duration

	mu    sync.RWMutex
	cache map[string]*Record

	// epoch is bumped by every invalidation. A fetch started in an older epoch
	// does not populate the cache, so it cannot resurrect an invalidated record.
	epoch uint64

	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithObserver reports cache activity to o.
func WithObserver(o CacheObserver) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// NewResolver creates a Resolver reading from the directory clients collection.
func NewResolver(clients directory.Clients, opts ...Option) *Resolver {
	r := &Resolver{
		clients:      clients,
		cache:        make(map[string]*Record),
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the record for clientID. It returns ErrNotFound, not a fatal
// error, when the client is absent; other directory failures are returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, clientID string) (*Record, error) {
	if clientID == "" {
		return nil, ErrNotFound
	}

	r.mu.RLock()
	rec, ok := r.cache[clientID]
	epoch := r.epoch
	r.mu.RUnlock()

	if ok {
		if r.observer != nil {
			r.observer.ClientCacheHit()
		}
		return rec, nil
	}
	if r.observer != nil {
		r.observer.ClientCacheMiss()
	}

	// The lookup is shared, so it must not end with the request that started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(clientID, func() (any, error) {
		fctx, cancel := context.WithTimeout(fetchCtx, r.fetchTimeout)
		defer cancel()
		return r.fetch(fctx, clientID, epoch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Record), nil
	}
}

func (r *Resolver) fetch(ctx context.Context, clientID string, epoch uint64) (*Record, error) {
	c, err := r.clients.Get(ctx, clientID)
	if err != nil {
		if directory.IsMissing(err) {
			logger.Debugw("client not found in directory", "client_id", clientID)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve client %s: %w", clientID, err)
	}

	rec, err := NewRecord(c)
	if err != nil {
		logger.Warnw("ignoring malformed client record", "client_id", clientID, "error", err)
		return nil, ErrNotFound
	}

	r.mu.Lock()
	if r.epoch == epoch {
		r.cache[clientID] = rec
	}
	r.mu.Unlock()

	return rec, nil
}

// Invalidate drops the cached record of clientID.
func (r *Resolver) Invalidate(clientID string) {
	r.mu.Lock()
	delete(r.cache, clientID)
	r.epoch++
	r.mu.Unlock()

	// Callers arriving after this point must not join a fetch started before it.
	r.group.Forget(clientID)

	if r.observer != nil {
		r.observer.ClientCacheInvalidated()
	}
	logger.Debugw("client cache cleared", "client_id", clientID)
}

// HandleChange applies a directory change notification.
func (r *Resolver) HandleChange(change directory.Change) {
	if change.Service != "" && change.Service != "clients" {
		return
	}
	if !invalidatingEvents[change.Event] || change.ID == "" {
		return
	}
	r.Invalidate(change.ID)
}

// ChangeSource delivers directory change notifications until ctx is done.
type ChangeSource interface {
	Deliver(ctx context.Context, fn func(directory.Change))
}

// Watch invalidates cached records for every change delivered by src. It blocks until ctx is done.
func (r *Resolver) Watch(ctx context.Context, src ChangeSource) {
	src.Deliver(ctx, r.HandleChange)
}

// Len returns the number of cached records.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
