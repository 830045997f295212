// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage holds the transient protocol artifacts of the authorization
// engine: authorization codes, tokens, PKCE challenges, OpenID Connect sessions
// and browser sessions. Nothing here survives a restart.
//
// Clients are not stored. GetClient reads through a ClientSource, which in
// production is the client resolver.
package storage

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/ory/fosite"
	"github.com/ory/fosite/handler/oauth2"
	"github.com/ory/fosite/handler/openid"
	"github.com/ory/fosite/handler/pkce"
)

const (
	// DefaultCleanupInterval is how often the background cleanup runs.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultAccessTokenTTL is the default TTL for access tokens when not extractable from session.
	DefaultAccessTokenTTL = 1 * time.Hour

	// DefaultRefreshTokenTTL is the default TTL for refresh tokens when not extractable from session.
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour

	// DefaultAuthCodeTTL is the default TTL for authorization codes (RFC 6749 recommendation).
	DefaultAuthCodeTTL = 10 * time.Minute

	// DefaultInvalidatedCodeTTL is how long invalidated codes are kept for replay detection.
	DefaultInvalidatedCodeTTL = 30 * time.Minute

	// DefaultPKCETTL is the default TTL for PKCE requests (same as auth codes).
	DefaultPKCETTL = 10 * time.Minute
)

// ErrNotFound is returned when an artifact does not exist or has expired.
var ErrNotFound = errors.New("storage: not found")

// ClientSource loads OAuth clients. Implementations return an error matching
// ErrNotFound when the client does not exist.
type ClientSource interface {
	Client(ctx context.Context, id string) (fosite.Client, error)
}

// ClientSourceFunc adapts a function to ClientSource.
type ClientSourceFunc func(ctx context.Context, id string) (fosite.Client, error)

// Client calls f.
func (f ClientSourceFunc) Client(ctx context.Context, id string) (fosite.Client, error) {
	return f(ctx, id)
}

// BrowserSession is the end-user's single sign-on session with this server.
type BrowserSession struct {
	ID        string
	AccountID string
	AuthTime  time.Time

	// Clients are the ids of the clients that obtained tokens in this session.
	Clients []string

	// Logout is the end-session request awaiting confirmation, if any.
	Logout *PendingLogout

	ExpiresAt time.Time
}

// PendingLogout is an end-session request shown to the end-user for confirmation.
type PendingLogout struct {
	// XSRF protects the confirmation form.
	XSRF string

	ClientID              string
	PostLogoutRedirectURI string
	State                 string
}

// AddClient records clientID, keeping Clients free of duplicates.
func (b *BrowserSession) AddClient(clientID string) {
	if !slices.Contains(b.Clients, clientID) {
		b.Clients = append(b.Clients, clientID)
	}
}

func (b *BrowserSession) clone() *BrowserSession {
	c := *b
	c.Clients = slices.Clone(b.Clients)
	if b.Logout != nil {
		pending := *b.Logout
		c.Logout = &pending
	}
	return &c
}

// BrowserSessionStorage persists browser sessions.
type BrowserSessionStorage interface {
	// SaveBrowserSession creates or replaces a session.
	SaveBrowserSession(ctx context.Context, sess *BrowserSession) error

	// GetBrowserSession returns ErrNotFound when the session is absent or expired.
	GetBrowserSession(ctx context.Context, id string) (*BrowserSession, error)

	DeleteBrowserSession(ctx context.Context, id string) error
}

// Storage is everything the authorization engine persists.
type Storage interface {
	fosite.ClientManager
	oauth2.AuthorizeCodeStorage
	oauth2.TokenRevocationStorage
	pkce.PKCERequestStorage
	openid.OpenIDConnectRequestStorage
	BrowserSessionStorage

	// Close stops background work.
	Close() error
}
