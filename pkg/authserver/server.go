// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authserver assembles the OAuth 2.0 / OpenID Connect authorization
// engine on fosite. Authorization requests that need a human decision are
// paused as interaction sessions and handed to the interaction controller;
// the engine resumes them once the controller records a result.
package authserver

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/ory/fosite"

	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
	"github.com/tryextra/extra-oidc/pkg/authserver/keys"
	"github.com/tryextra/extra-oidc/pkg/authserver/storage"
	"github.com/tryextra/extra-oidc/pkg/directory"
	"github.com/tryextra/extra-oidc/pkg/interaction"
	"github.com/tryextra/extra-oidc/pkg/logger"
	"github.com/tryextra/extra-oidc/pkg/views"
)

// Endpoint paths.
const (
	AuthorizePath         = "/oauth/authorize"
	TokenPath             = "/oauth/token"
	RevokePath            = "/oauth/revoke"
	IntrospectPath        = "/oauth/tokeninfo"
	UserinfoPath          = "/openid/userinfo"
	JWKSPath              = "/.well-known/jwks.json"
	DiscoveryPath         = "/.well-known/openid-configuration"
	SessionEndPath        = "/session/end"
	SessionEndConfirmPath = "/session/end/confirm"
)

// Decider picks the next step of a paused interaction.
type Decider interface {
	Decide(ctx context.Context, sess *interaction.Session) (*interaction.Decision, error)
}

// Granter records consent in the authorization ledger.
type Granter interface {
	Grant(ctx context.Context, userID, clientID string, scopes []string) (*directory.Authorization, error)
}

// AccountFinder loads end-user accounts.
type AccountFinder interface {
	FindAccount(ctx context.Context, id string) (*Account, error)
}

// LogoutObserver is notified when a browser session ends.
type LogoutObserver interface {
	ObserveLogout(ctx context.Context, frames int)
}

// Deps holds the collaborators of a Server.
type Deps struct {
	// Storage must have been created with ClientSource over Clients.
	Storage  storage.Storage
	Keys     keys.KeyProvider
	Clients  ClientResolver
	Accounts AccountFinder
	Ledger   Granter
	Decider  Decider

	Interactions       interaction.Store
	InteractionCookies *interaction.CookieCodec

	Views    *views.Renderer
	Errors   *apierrors.Writer
	Observer LogoutObserver
}

// Server serves the authorization engine endpoints.
type Server struct {
	cfg      Config
	provider fosite.OAuth2Provider
	storage  storage.Storage
	keys     keys.KeyProvider

	clients  ClientResolver
	accounts AccountFinder
	ledger   Granter
	decider  Decider

	interactions       interaction.Store
	interactionCookies *interaction.CookieCodec
	sessionCookies     *interaction.CookieCodec

	views        *views.Renderer
	errs         *apierrors.Writer
	observer     LogoutObserver
	hintVerifier *oidc.IDTokenVerifier
	discovery    []byte
	now          func() time.Time
}

// New creates a Server.
func New(ctx context.Context, cfg Config, deps Deps) (*Server, error) {
	logger.Debug("initializing authorization engine")

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if deps.Keys == nil {
		return nil, errors.New("key provider is required")
	}

	signingKey, err := deps.Keys.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get signing key: %w", err)
	}
	hintVerifier, err := newHintVerifier(ctx, cfg.Issuer, deps.Keys, signingKey.Algorithm)
	if err != nil {
		return nil, err
	}

	sessionCookies, err := interaction.NewCookieCodec(cfg.SessionCookieName, cfg.CookieKeys, cfg.SecureCookies)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cookie codec: %w", err)
	}

	discovery, err := newDiscoveryDocument(&cfg, signingKey.Algorithm).marshal()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:                cfg,
		provider:           newProvider(newFositeConfig(&cfg), deps.Storage, signingKey),
		storage:            deps.Storage,
		keys:               deps.Keys,
		clients:            deps.Clients,
		accounts:           deps.Accounts,
		ledger:             deps.Ledger,
		decider:            deps.Decider,
		interactions:       deps.Interactions,
		interactionCookies: deps.InteractionCookies,
		sessionCookies:     sessionCookies,
		views:              deps.Views,
		errs:               deps.Errors,
		observer:           deps.Observer,
		hintVerifier:       hintVerifier,
		discovery:          discovery,
		now:                time.Now,
	}

	logger.Debugw("authorization engine initialized", "issuer", cfg.Issuer)
	return s, nil
}

// newHintVerifier verifies id_token_hint values issued by this server. Expired
// hints are accepted; OpenID Connect RP-initiated logout allows them.
func newHintVerifier(ctx context.Context, issuer string, p keys.KeyProvider, alg string) (*oidc.IDTokenVerifier, error) {
	jwks, err := p.PublicKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get public keys: %w", err)
	}
	pubs := make([]crypto.PublicKey, 0, len(jwks))
	for _, k := range jwks {
		pubs = append(pubs, k.Key)
	}
	return oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: pubs}, &oidc.Config{
		SkipClientIDCheck:    true,
		SkipExpiryCheck:      true,
		SupportedSigningAlgs: []string{alg},
	}), nil
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get(AuthorizePath, s.authorize)
	r.Post(AuthorizePath, s.authorize)
	r.Get(AuthorizePath+"/{uuid}", s.errs.ErrorHandler(s.resume))

	r.Post(TokenPath, s.token)
	r.Post(RevokePath, s.revoke)
	r.Post(IntrospectPath, s.introspect)
	r.Get(UserinfoPath, s.userinfo)
	r.Post(UserinfoPath, s.userinfo)

	r.Get(JWKSPath, s.serveJWKS)
	r.Get(DiscoveryPath, s.serveDiscovery)

	r.Get(SessionEndPath, s.errs.ErrorHandler(s.endSession))
	r.Post(SessionEndPath, s.errs.ErrorHandler(s.endSession))
	r.Post(SessionEndConfirmPath, s.errs.ErrorHandler(s.confirmEndSession))
}

// Handler returns a router serving every endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

// Close releases the storage.
func (s *Server) Close() error {
	logger.Debug("closing authorization engine")
	return s.storage.Close()
}

// InteractionURL is where the engine sends the browser for a paused request.
func (*Server) InteractionURL(uuid string) string {
	return interaction.RootURL(uuid)
}

// ResumeURL is where the interaction controller hands a finished interaction back.
func ResumeURL(uuid string) string {
	return AuthorizePath + "/" + url.PathEscape(uuid)
}
