// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"time"

	"github.com/ory/fosite"
	"github.com/ory/fosite/handler/oauth2"
	"github.com/ory/fosite/handler/openid"
	"github.com/ory/fosite/token/jwt"
)

// Claim keys added to issued tokens.
const (
	// ClientIDClaimKey carries the client of an access token.
	ClientIDClaimKey = "client_id"

	// SessionIDClaimKey carries the browser session of an ID token, used by
	// front-channel logout.
	SessionIDClaimKey = "sid"
)

// Session is the fosite session of every request. The embedded OpenID Connect
// session produces ID tokens; GetJWTClaims produces JWT access tokens.
type Session struct {
	*openid.DefaultSession `json:"id_token"`

	ClientID string `json:"client_id,omitempty"`
}

// NewSession creates a session for subject. subject is empty for client
// credentials grants.
func NewSession(subject, clientID string) *Session {
	return &Session{
		DefaultSession: &openid.DefaultSession{
			Claims:  &jwt.IDTokenClaims{Subject: subject, Extra: map[string]interface{}{}},
			Headers: &jwt.Headers{},
			Subject: subject,
		},
		ClientID: clientID,
	}
}

// newIDTokenSession builds the session issued at the end of an interaction.
func newIDTokenSession(subject, clientID, sid string, authTime, requestedAt time.Time, extra map[string]interface{}) *Session {
	s := NewSession(subject, clientID)
	s.Claims.AuthTime = authTime.UTC()
	s.Claims.RequestedAt = requestedAt.UTC()
	for k, v := range extra {
		s.Claims.Extra[k] = v
	}
	if sid != "" {
		s.Claims.Extra[SessionIDClaimKey] = sid
	}
	return s
}

// GetJWTClaims returns the claims of a JWT access token. A new value is
// returned on every call since fosite fills it in place.
func (s *Session) GetJWTClaims() jwt.JWTClaimsContainer {
	claims := &jwt.JWTClaims{Extra: map[string]interface{}{}}
	if s.DefaultSession != nil {
		claims.Subject = s.DefaultSession.Subject
	}
	if s.ClientID != "" {
		claims.Extra[ClientIDClaimKey] = s.ClientID
	}
	return claims
}

// GetJWTHeader returns the JWT access token header. The signer adds the kid.
func (*Session) GetJWTHeader() *jwt.Headers {
	return &jwt.Headers{Extra: map[string]interface{}{}}
}

// Clone implements fosite.Session.
func (s *Session) Clone() fosite.Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.DefaultSession != nil {
		c.DefaultSession = s.DefaultSession.Clone().(*openid.DefaultSession)
	}
	return &c
}

// Compile-time interface checks.
var (
	_ oauth2.JWTSessionContainer = (*Session)(nil)
	_ openid.Session             = (*Session)(nil)
)
