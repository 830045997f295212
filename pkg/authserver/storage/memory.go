// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ory/fosite"
	"github.com/ory/fosite/handler/openid"

	"github.com/tryextra/extra-oidc/pkg/logger"
)

// timedEntry wraps a value with its creation time for TTL tracking.
type timedEntry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
}

// MemoryStorage implements Storage with in-memory maps. It is safe for
// concurrent use.
//
// Token maps store the full fosite.Requester because fosite needs the granted
// scopes, client and session when a token is presented again. Maps are keyed
// by signature; revocation by request id scans.
type MemoryStorage struct {
	mu sync.RWMutex

	clientSource ClientSource

	// authCodes maps authorization code signature -> Requester. Used codes stay
	// in invalidatedCodes so replays are reported with the original request.
	authCodes        map[string]*timedEntry[fosite.Requester]
	invalidatedCodes map[string]*timedEntry[bool]

	accessTokens  map[string]*timedEntry[fosite.Requester]
	refreshTokens map[string]*timedEntry[fosite.Requester]
	pkceRequests  map[string]*timedEntry[fosite.Requester]

	// oidcSessions maps authorization code signature -> Requester carrying the
	// ID token claims issued at the token endpoint.
	oidcSessions map[string]*timedEntry[fosite.Requester]

	// clientAssertionJWTs tracks JTIs to prevent JWT replay attacks per RFC 7523.
	clientAssertionJWTs map[string]time.Time

	browserSessions map[string]*BrowserSession

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	closeOnce       sync.Once
}

// MemoryStorageOption configures a MemoryStorage instance.
type MemoryStorageOption func(*MemoryStorage)

// WithCleanupInterval sets a custom cleanup interval.
func WithCleanupInterval(interval time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) {
		s.cleanupInterval = interval
	}
}

// NewMemoryStorage creates a MemoryStorage reading clients from clientSource
// and starts the background cleanup goroutine.
func NewMemoryStorage(clientSource ClientSource, opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		clientSource:        clientSource,
		authCodes:           make(map[string]*timedEntry[fosite.Requester]),
		invalidatedCodes:    make(map[string]*timedEntry[bool]),
		accessTokens:        make(map[string]*timedEntry[fosite.Requester]),
		refreshTokens:       make(map[string]*timedEntry[fosite.Requester]),
		pkceRequests:        make(map[string]*timedEntry[fosite.Requester]),
		oidcSessions:        make(map[string]*timedEntry[fosite.Requester]),
		clientAssertionJWTs: make(map[string]time.Time),
		browserSessions:     make(map[string]*BrowserSession),
		cleanupInterval:     DefaultCleanupInterval,
		stopCleanup:         make(chan struct{}),
		cleanupDone:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Close stops the background cleanup goroutine and waits for it to finish.
func (s *MemoryStorage) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
	<-s.cleanupDone
	return nil
}

func (s *MemoryStorage) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func expiredKeys[T any](m map[string]*timedEntry[T], now time.Time) []string {
	var keys []string
	for k, v := range m {
		if now.After(v.expiresAt) {
			keys = append(keys, k)
		}
	}
	return keys
}

// cleanupExpired collects expired keys under the read lock, then deletes them
// under the write lock.
func (s *MemoryStorage) cleanupExpired() {
	now := time.Now()

	s.mu.RLock()
	expiredAuthCodes := expiredKeys(s.authCodes, now)
	expiredInvalidatedCodes := expiredKeys(s.invalidatedCodes, now)
	expiredAccessTokens := expiredKeys(s.accessTokens, now)
	expiredRefreshTokens := expiredKeys(s.refreshTokens, now)
	expiredPKCERequests := expiredKeys(s.pkceRequests, now)
	expiredOIDCSessions := expiredKeys(s.oidcSessions, now)

	var expiredJWTs []string
	for k, v := range s.clientAssertionJWTs {
		if now.After(v) {
			expiredJWTs = append(expiredJWTs, k)
		}
	}

	var expiredBrowserSessions []string
	for k, v := range s.browserSessions {
		if now.After(v.ExpiresAt) {
			expiredBrowserSessions = append(expiredBrowserSessions, k)
		}
	}
	s.mu.RUnlock()

	total := len(expiredAuthCodes) + len(expiredInvalidatedCodes) + len(expiredAccessTokens) +
		len(expiredRefreshTokens) + len(expiredPKCERequests) + len(expiredOIDCSessions) +
		len(expiredJWTs) + len(expiredBrowserSessions)
	if total == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range expiredAuthCodes {
		delete(s.authCodes, k)
		delete(s.invalidatedCodes, k)
	}
	for _, k := range expiredInvalidatedCodes {
		delete(s.invalidatedCodes, k)
	}
	for _, k := range expiredAccessTokens {
		delete(s.accessTokens, k)
	}
	for _, k := range expiredRefreshTokens {
		delete(s.refreshTokens, k)
	}
	for _, k := range expiredPKCERequests {
		delete(s.pkceRequests, k)
	}
	for _, k := range expiredOIDCSessions {
		delete(s.oidcSessions, k)
	}
	for _, k := range expiredJWTs {
		delete(s.clientAssertionJWTs, k)
	}
	for _, k := range expiredBrowserSessions {
		delete(s.browserSessions, k)
	}

	logger.Debugw("expired authorization artifacts removed", "count", total)
}

// getExpirationFromRequester reads the per-token-type expiry from the request
// session, falling back to defaultTTL from now.
func getExpirationFromRequester(request fosite.Requester, tokenType fosite.TokenType, defaultTTL time.Duration) time.Time {
	if request == nil {
		return time.Now().Add(defaultTTL)
	}

	session := request.GetSession()
	if session == nil {
		return time.Now().Add(defaultTTL)
	}

	expTime := session.GetExpiresAt(tokenType)
	if expTime.IsZero() {
		return time.Now().Add(defaultTTL)
	}

	return expTime
}

func (s *MemoryStorage) put(
	m map[string]*timedEntry[fosite.Requester], key, what string, request fosite.Requester, expiresAt time.Time,
) error {
	if key == "" {
		return fosite.ErrInvalidRequest.WithHintf("%s signature cannot be empty", what)
	}
	if request == nil {
		return fosite.ErrInvalidRequest.WithHint("request cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m[key] = &timedEntry[fosite.Requester]{
		value:     request,
		createdAt: time.Now(),
		expiresAt: expiresAt,
	}
	return nil
}

func (s *MemoryStorage) get(m map[string]*timedEntry[fosite.Requester], key, what string) (fosite.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := m[key]
	if !ok || time.Now().After(entry.expiresAt) {
		logger.Debugw("authorization artifact not found", "kind", what)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHintf("%s not found", what))
	}
	return entry.value, nil
}

func (s *MemoryStorage) remove(m map[string]*timedEntry[fosite.Requester], key, what string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := m[key]; !ok {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHintf("%s not found", what))
	}
	delete(m, key)
	return nil
}

// -----------------------
// fosite.ClientManager
// -----------------------

// GetClient loads the client from the client source. A missing client is
// reported as fosite.ErrNotFound, which fosite turns into invalid_client.
func (s *MemoryStorage) GetClient(ctx context.Context, id string) (fosite.Client, error) {
	client, err := s.clientSource.Client(ctx, id)
	if errors.Is(err, ErrNotFound) {
		logger.Debugw("client not found", "client_id", id)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Client not found"))
	}
	if err != nil {
		return nil, fosite.ErrServerError.WithWrap(err).WithDebug(err.Error())
	}
	return client, nil
}

// ClientAssertionJWTValid returns fosite.ErrJTIKnown if the JTI was already seen.
func (s *MemoryStorage) ClientAssertionJWTValid(_ context.Context, jti string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if exp, ok := s.clientAssertionJWTs[jti]; ok && time.Now().Before(exp) {
		return fosite.ErrJTIKnown
	}
	return nil
}

// SetClientAssertionJWT marks a JTI as known until exp.
func (s *MemoryStorage) SetClientAssertionJWT(_ context.Context, jti string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clientAssertionJWTs[jti] = exp
	return nil
}

// -----------------------
// oauth2.AuthorizeCodeStorage
// -----------------------

// CreateAuthorizeCodeSession stores the authorization request for a given authorization code.
func (s *MemoryStorage) CreateAuthorizeCodeSession(_ context.Context, code string, request fosite.Requester) error {
	expiresAt := getExpirationFromRequester(request, fosite.AuthorizeCode, DefaultAuthCodeTTL)
	return s.put(s.authCodes, code, "Authorization code", request, expiresAt)
}

// GetAuthorizeCodeSession retrieves the authorization request for a given code.
// A used code returns the request together with fosite.ErrInvalidatedAuthorizeCode.
func (s *MemoryStorage) GetAuthorizeCodeSession(_ context.Context, code string, _ fosite.Session) (fosite.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.authCodes[code]
	if !ok {
		logger.Debugw("authorization code not found")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Authorization code not found"))
	}

	if s.invalidatedCodes[code] != nil {
		return entry.value, fosite.ErrInvalidatedAuthorizeCode
	}

	return entry.value, nil
}

// InvalidateAuthorizeCodeSession marks an authorization code as used.
func (s *MemoryStorage) InvalidateAuthorizeCodeSession(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authCodes[code]; !ok {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Authorization code not found"))
	}

	now := time.Now()
	s.invalidatedCodes[code] = &timedEntry[bool]{
		value:     true,
		createdAt: now,
		expiresAt: now.Add(DefaultInvalidatedCodeTTL),
	}
	return nil
}

// -----------------------
// oauth2.AccessTokenStorage
// -----------------------

// CreateAccessTokenSession stores the access token session.
func (s *MemoryStorage) CreateAccessTokenSession(_ context.Context, signature string, request fosite.Requester) error {
	expiresAt := getExpirationFromRequester(request, fosite.AccessToken, DefaultAccessTokenTTL)
	return s.put(s.accessTokens, signature, "Access token", request, expiresAt)
}

// GetAccessTokenSession retrieves the access token session by its signature.
func (s *MemoryStorage) GetAccessTokenSession(_ context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	return s.get(s.accessTokens, signature, "Access token")
}

// DeleteAccessTokenSession removes the access token session.
func (s *MemoryStorage) DeleteAccessTokenSession(_ context.Context, signature string) error {
	return s.remove(s.accessTokens, signature, "Access token")
}

// -----------------------
// oauth2.RefreshTokenStorage
// -----------------------

// CreateRefreshTokenSession stores the refresh token session.
func (s *MemoryStorage) CreateRefreshTokenSession(_ context.Context, signature string, _ string, request fosite.Requester) error {
	expiresAt := getExpirationFromRequester(request, fosite.RefreshToken, DefaultRefreshTokenTTL)
	return s.put(s.refreshTokens, signature, "Refresh token", request, expiresAt)
}

// GetRefreshTokenSession retrieves the refresh token session by its signature.
func (s *MemoryStorage) GetRefreshTokenSession(_ context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	return s.get(s.refreshTokens, signature, "Refresh token")
}

// DeleteRefreshTokenSession removes the refresh token session.
func (s *MemoryStorage) DeleteRefreshTokenSession(_ context.Context, signature string) error {
	return s.remove(s.refreshTokens, signature, "Refresh token")
}

// RotateRefreshToken drops a used refresh token and the access tokens of its grant.
func (s *MemoryStorage) RotateRefreshToken(_ context.Context, requestID string, refreshTokenSignature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refreshTokens, refreshTokenSignature)
	for sig, entry := range s.accessTokens {
		if entry.value.GetID() == requestID {
			delete(s.accessTokens, sig)
		}
	}
	return nil
}

// -----------------------
// oauth2.TokenRevocationStorage
// -----------------------

// RevokeAccessToken removes every access token issued under requestID.
func (s *MemoryStorage) RevokeAccessToken(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sig, entry := range s.accessTokens {
		if entry.value.GetID() == requestID {
			delete(s.accessTokens, sig)
		}
	}
	return nil
}

// RevokeRefreshToken removes every refresh token issued under requestID.
func (s *MemoryStorage) RevokeRefreshToken(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sig, entry := range s.refreshTokens {
		if entry.value.GetID() == requestID {
			delete(s.refreshTokens, sig)
		}
	}
	return nil
}

// RevokeRefreshTokenMaybeGracePeriod revokes immediately; grace periods are not supported.
func (s *MemoryStorage) RevokeRefreshTokenMaybeGracePeriod(ctx context.Context, requestID string, _ string) error {
	return s.RevokeRefreshToken(ctx, requestID)
}

// -----------------------
// pkce.PKCERequestStorage
// -----------------------

// CreatePKCERequestSession stores the PKCE request session.
func (s *MemoryStorage) CreatePKCERequestSession(_ context.Context, signature string, request fosite.Requester) error {
	expiresAt := getExpirationFromRequester(request, fosite.AuthorizeCode, DefaultPKCETTL)
	return s.put(s.pkceRequests, signature, "PKCE request", request, expiresAt)
}

// GetPKCERequestSession retrieves the PKCE request session by its signature.
func (s *MemoryStorage) GetPKCERequestSession(_ context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	return s.get(s.pkceRequests, signature, "PKCE request")
}

// DeletePKCERequestSession removes the PKCE request session.
func (s *MemoryStorage) DeletePKCERequestSession(_ context.Context, signature string) error {
	return s.remove(s.pkceRequests, signature, "PKCE request")
}

// -----------------------
// openid.OpenIDConnectRequestStorage
// -----------------------

// CreateOpenIDConnectSession stores the request an ID token is later issued from.
func (s *MemoryStorage) CreateOpenIDConnectSession(_ context.Context, authorizeCode string, requester fosite.Requester) error {
	expiresAt := getExpirationFromRequester(requester, fosite.AuthorizeCode, DefaultAuthCodeTTL)
	return s.put(s.oidcSessions, authorizeCode, "OpenID Connect session", requester, expiresAt)
}

// GetOpenIDConnectSession returns openid.ErrNoSessionFound when the code was
// issued without the openid scope.
func (s *MemoryStorage) GetOpenIDConnectSession(
	_ context.Context, authorizeCode string, _ fosite.Requester,
) (fosite.Requester, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.oidcSessions[authorizeCode]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, openid.ErrNoSessionFound
	}
	return entry.value, nil
}

// DeleteOpenIDConnectSession removes the session of authorizeCode.
func (s *MemoryStorage) DeleteOpenIDConnectSession(_ context.Context, authorizeCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.oidcSessions, authorizeCode)
	return nil
}

// -----------------------
// BrowserSessionStorage
// -----------------------

// SaveBrowserSession creates or replaces a browser session.
func (s *MemoryStorage) SaveBrowserSession(_ context.Context, sess *BrowserSession) error {
	if sess == nil || sess.ID == "" {
		return errors.New("browser session requires an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.browserSessions[sess.ID] = sess.clone()
	return nil
}

// GetBrowserSession returns a copy of the session.
func (s *MemoryStorage) GetBrowserSession(_ context.Context, id string) (*BrowserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.browserSessions[id]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return nil, fmt.Errorf("%w: browser session", ErrNotFound)
	}
	return sess.clone(), nil
}

// DeleteBrowserSession removes a browser session. Deleting a missing session is not an error.
func (s *MemoryStorage) DeleteBrowserSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.browserSessions, id)
	return nil
}

// -----------------------
// Stats
// -----------------------

// Stats contains statistics about the storage contents.
type Stats struct {
	AuthCodes           int
	InvalidatedCodes    int
	AccessTokens        int
	RefreshTokens       int
	PKCERequests        int
	OIDCSessions        int
	ClientAssertionJWTs int
	BrowserSessions     int
}

// Stats returns current statistics about storage contents.
func (s *MemoryStorage) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		AuthCodes:           len(s.authCodes),
		InvalidatedCodes:    len(s.invalidatedCodes),
		AccessTokens:        len(s.accessTokens),
		RefreshTokens:       len(s.refreshTokens),
		PKCERequests:        len(s.pkceRequests),
		OIDCSessions:        len(s.oidcSessions),
		ClientAssertionJWTs: len(s.clientAssertionJWTs),
		BrowserSessions:     len(s.browserSessions),
	}
}

// Compile-time interface compliance checks
var _ Storage = (*MemoryStorage)(nil)
