// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tryextra/extra-oidc/pkg/logger"
)

// ChangeFeed receives directory change notifications published on a Redis channel.
type ChangeFeed struct {
	client  redis.UniversalClient
	channel string
}

// NewChangeFeed creates a feed reading channel on client.
func NewChangeFeed(client redis.UniversalClient, channel string) *ChangeFeed {
	return &ChangeFeed{client: client, channel: channel}
}

// Subscription is an active subscription to a ChangeFeed.
type Subscription struct {
	pubsub *redis.PubSub
}

// Subscribe opens the subscription and waits for the server to confirm it,
// so no notification published after Subscribe returns is missed.
func (f *ChangeFeed) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	return &Subscription{pubsub: pubsub}, nil
}

// Publish emits a change on the feed channel.
func (f *ChangeFeed) Publish(ctx context.Context, change Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Deliver calls fn for each change until ctx is done or the subscription is closed.
// Malformed messages are logged and skipped.
func (s *Subscription) Deliver(ctx context.Context, fn func(Change)) {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				logger.Warnw("ignoring malformed directory change",
					"channel", msg.Channel,
					"error", err,
				)
				continue
			}
			fn(change)
		}
	}
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
