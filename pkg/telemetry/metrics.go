// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tryextra/extra-oidc"

// Login outcomes reported by ObserveLogin.
const (
	LoginSucceeded     = "succeeded"
	LoginRejected      = "rejected"
	LoginUpstreamError = "upstream_error"
)

// Grant operations reported by ObserveGrant.
const (
	GrantCreated = "created"
	GrantUpdated = "updated"
)

// Metrics records interaction flow counters. A nil *Metrics discards everything.
type Metrics struct {
	promptDecisions metric.Int64Counter
	logins          metric.Int64Counter
	clientCache     metric.Int64Counter
	grants          metric.Int64Counter
	logouts         metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(instrumentationName)

	promptDecisions, err := meter.Int64Counter(
		"extra_oidc_prompt_decisions",
		metric.WithDescription("Interaction screens chosen by the prompt decision engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt decisions counter: %w", err)
	}

	logins, err := meter.Int64Counter(
		"extra_oidc_identity_logins",
		metric.WithDescription("Upstream identity provider callbacks by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	clientCache, err := meter.Int64Counter(
		"extra_oidc_client_cache_events",
		metric.WithDescription("Client resolver cache hits, misses and invalidations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client cache counter: %w", err)
	}

	grants, err := meter.Int64Counter(
		"extra_oidc_grants",
		metric.WithDescription("Authorization ledger writes"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grants counter: %w", err)
	}

	logouts, err := meter.Int64Counter(
		"extra_oidc_logouts",
		metric.WithDescription("Completed end-session requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logouts counter: %w", err)
	}

	return &Metrics{
		promptDecisions: promptDecisions,
		logins:          logins,
		clientCache:     clientCache,
		grants:          grants,
		logouts:         logouts,
	}, nil
}

// ObservePrompt counts an interaction screen decision.
func (m *Metrics) ObservePrompt(ctx context.Context, prompt string, clientID string) {
	if m == nil {
		return
	}
	m.promptDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("prompt", prompt),
		attribute.String("client_id", clientID),
	))
}

// ObserveLogin counts an upstream callback outcome.
func (m *Metrics) ObserveLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// ObserveGrant counts a ledger write.
func (m *Metrics) ObserveGrant(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.grants.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// ObserveLogout counts a completed logout.
func (m *Metrics) ObserveLogout(ctx context.Context, frames int) {
	if m == nil {
		return
	}
	m.logouts.Add(ctx, 1, metric.WithAttributes(attribute.Bool("frontchannel", frames > 0)))
}

// ClientCacheHit implements clients.CacheObserver.
func (m *Metrics) ClientCacheHit() { m.cacheEvent("hit") }

// ClientCacheMiss implements clients.CacheObserver.
func (m *Metrics) ClientCacheMiss() { m.cacheEvent("miss") }

// ClientCacheInvalidated implements clients.CacheObserver.
func (m *Metrics) ClientCacheInvalidated() { m.cacheEvent("invalidated") }

func (m *Metrics) cacheEvent(event string) {
	if m == nil {
		return
	}
	m.clientCache.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", event)))
}
