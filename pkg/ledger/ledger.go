// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ledger records which scopes a user has granted to a client.
//
// The directory service does not enforce one authorization per (user, client)
// pair, so every read-modify-write runs under a lock keyed by that pair.
package ledger

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/tryextra/extra-oidc/pkg/directory"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

// Grant operations reported to a GrantObserver.
const (
	OperationCreated = "created"
	OperationUpdated = "updated"
)

// GrantObserver is notified of every ledger write.
type GrantObserver interface {
	ObserveGrant(ctx context.Context, operation string)
}

// Ledger reads and writes authorization grants.
type Ledger struct {
	auths    directory.Authorizations
	local    *KeyedMutex
	locker   Locker
	observer GrantObserver
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLocker adds a cross-process lock taken after the in-process one.
func WithLocker(l Locker) Option {
	return func(led *Ledger) {
		led.locker = l
	}
}

// WithObserver reports writes to o.
func WithObserver(o GrantObserver) Option {
	return func(led *Ledger) {
		led.observer = o
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(led *Ledger) {
		led.now = now
	}
}

// New creates a Ledger on the directory authorizations collection.
func New(auths directory.Authorizations, opts ...Option) *Ledger {
	led := &Ledger{
		auths: auths,
		local: NewKeyedMutex(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(led)
	}
	return led
}

// Find returns the grant of userID to clientID, or nil when there is none.
func (l *Ledger) Find(ctx context.Context, userID, clientID string) (*directory.Authorization, error) {
	found, err := l.auths.Find(ctx, userID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to find authorization: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		logger.Warnw("duplicate authorizations for user and client, using the oldest",
			"user_id", userID, "client_id", clientID, "count", len(found))
	}
	return &found[0], nil
}

// Grant records scopes for the pair. An existing grant keeps its scopes and gains
// the new ones; otherwise a grant is created.
func (l *Ledger) Grant(ctx context.Context, userID, clientID string, scopes []string) (*directory.Authorization, error) {
	key := lockKey(userID, clientID)

	unlock, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to lock authorization: %w", err)
	}
	defer unlock()

	if l.locker != nil {
		release, err := l.locker.Acquire(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to lock authorization: %w", err)
		}
		defer release()
	}

	existing, err := l.Find(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		created, err := l.auths.Create(ctx, &directory.Authorization{
			User:   userID,
			Client: clientID,
			Scopes: Union(nil, scopes),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create authorization: %w", err)
		}
		l.observe(ctx, OperationCreated)
		logger.Debugw("authorization created", "user_id", userID, "client_id", clientID, "scopes", created.Scopes)
		return created, nil
	}

	patched, err := l.auths.Patch(ctx, existing.ID, Union(existing.Scopes, scopes), l.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update authorization %s: %w", existing.ID, err)
	}
	l.observe(ctx, OperationUpdated)
	logger.Debugw("authorization updated", "user_id", userID, "client_id", clientID, "scopes", patched.Scopes)
	return patched, nil
}

func (l *Ledger) observe(ctx context.Context, op string) {
	if l.observer != nil {
		l.observer.ObserveGrant(ctx, op)
	}
}

// Union returns granted followed by the members of requested it lacks, without duplicates.
func Union(granted, requested []string) []string {
	out := make([]string, 0, len(granted)+len(requested))
	for _, s := range slices.Concat(granted, requested) {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Missing returns the members of requested absent from granted, in request order.
func Missing(requested, granted []string) []string {
	var out []string
	for _, s := range requested {
		if !slices.Contains(granted, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// lockKey escapes both ids so that ids containing the separator cannot collide.
func lockKey(userID, clientID string) string {
	return url.QueryEscape(userID) + ":" + url.QueryEscape(clientID)
}
