// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tryextra/extra-oidc/pkg/logger"
)

// Scopes supported by the authorization engine.
const (
	ScopeOpenID        = "openid"
	ScopeOfflineAccess = "offline_access"
	ScopeEmail         = "email"
	ScopeProfile       = "profile"
)

// DefaultPostLogoutRedirectURI is where the end-user lands after logout when
// the client does not name a registered redirect.
const DefaultPostLogoutRedirectURI = "https://tryextra.net/"

// DefaultScopes is the scope list of every client.
var DefaultScopes = []string{ScopeOpenID, ScopeOfflineAccess, ScopeEmail, ScopeProfile}

// Config is the configuration of the authorization engine. All values must be
// fully resolved; file paths are handled by the caller.
type Config struct {
	// Issuer is the issuer identifier, the "iss" claim of issued tokens.
	Issuer string

	// APIAudience is the audience of access tokens and client credentials.
	APIAudience string

	// HMACSecret signs authorization codes and refresh tokens.
	// Must be at least 32 bytes and consistent across replicas.
	// A random secret is generated when empty.
	HMACSecret []byte

	// AccessTokenLifespan defaults to 1 hour.
	AccessTokenLifespan time.Duration

	// RefreshTokenLifespan defaults to 14 days.
	RefreshTokenLifespan time.Duration

	// AuthCodeLifespan defaults to 10 minutes.
	AuthCodeLifespan time.Duration

	// IDTokenLifespan defaults to 1 hour.
	IDTokenLifespan time.Duration

	// SessionLifespan bounds the single sign-on session. Defaults to 14 days.
	SessionLifespan time.Duration

	// InteractionTTL bounds a paused authorization request. Defaults to 1 hour.
	InteractionTTL time.Duration

	// Scopes supported by every client. Defaults to DefaultScopes.
	Scopes []string

	// PostLogoutRedirectURI defaults to DefaultPostLogoutRedirectURI.
	PostLogoutRedirectURI string

	// FrontchannelLogoutTimeout is the budget of the logout frames.
	FrontchannelLogoutTimeout time.Duration

	// SessionCookieName defaults to "_session".
	SessionCookieName string

	// CookieKeys sign the session cookie. The first key signs.
	CookieKeys []string

	// SecureCookies sets the Secure attribute on cookies.
	SecureCookies bool

	// Development sends fosite debug messages to clients.
	Development bool
}

// Validate checks required fields. It is called after applyDefaults.
func (c *Config) Validate() error {
	logger.Debugw("validating authorization engine config", "issuer", c.Issuer)

	var errs []error
	if err := validateAbsoluteURL("issuer", c.Issuer); err != nil {
		errs = append(errs, err)
	}
	if err := validateAbsoluteURL("api audience", c.APIAudience); err != nil {
		errs = append(errs, err)
	}
	if len(c.HMACSecret) < 32 {
		errs = append(errs, errors.New("HMAC secret must be at least 32 bytes"))
	}
	if len(c.CookieKeys) == 0 {
		errs = append(errs, errors.New("at least one cookie key is required"))
	}
	return errors.Join(errs...)
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults() error {
	if c.AccessTokenLifespan == 0 {
		c.AccessTokenLifespan = time.Hour
	}
	if c.RefreshTokenLifespan == 0 {
		c.RefreshTokenLifespan = 14 * 24 * time.Hour
	}
	if c.AuthCodeLifespan == 0 {
		c.AuthCodeLifespan = 10 * time.Minute
	}
	if c.IDTokenLifespan == 0 {
		c.IDTokenLifespan = time.Hour
	}
	if c.SessionLifespan == 0 {
		c.SessionLifespan = 14 * 24 * time.Hour
	}
	if c.InteractionTTL == 0 {
		c.InteractionTTL = time.Hour
	}
	if len(c.Scopes) == 0 {
		c.Scopes = DefaultScopes
	}
	if c.PostLogoutRedirectURI == "" {
		c.PostLogoutRedirectURI = DefaultPostLogoutRedirectURI
	}
	if c.SessionCookieName == "" {
		c.SessionCookieName = "_session"
	}
	if len(c.HMACSecret) == 0 {
		logger.Warnw("no HMAC secret configured, generating an ephemeral one; codes and refresh tokens will not survive a restart")
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate HMAC secret: %w", err)
		}
		c.HMACSecret = secret
	}
	return nil
}

func validateAbsoluteURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
	}
	return nil
}
