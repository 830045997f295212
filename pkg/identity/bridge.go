// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package identity authenticates end users against the upstream OpenID Connect
// provider (Azure AD) and maps them onto directory accounts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
	"github.com/tryextra/extra-oidc/pkg/interaction"
	"github.com/tryextra/extra-oidc/pkg/logger"
	"github.com/tryextra/extra-oidc/pkg/telemetry"
)

// Path is the identity provider route, relative to the interaction routes.
const Path = "/azuread"

// LoginPath is the absolute path that starts and completes the handshake.
const LoginPath = interaction.BasePath + Path

// Upstream response types.
const (
	ResponseTypeIDToken = "id_token"
	ResponseTypeCode    = "code"
)

// Config configures the upstream provider.
type Config struct {
	// Issuer is the provider issuer; discovery reads {Issuer}/.well-known/openid-configuration.
	Issuer string

	ClientID     string
	ClientSecret string

	// RedirectURL is the absolute URL of LoginPath.
	RedirectURL string

	// TenantDomain is sent as domain_hint.
	TenantDomain string

	// ResponseType is id_token (default) or code.
	ResponseType string

	Scopes []string
}

// Validate checks cfg and fills defaults.
func (cfg *Config) Validate() error {
	if cfg.Issuer == "" {
		return errors.New("upstream issuer is required")
	}
	if cfg.ClientID == "" {
		return errors.New("upstream client id is required")
	}
	if cfg.RedirectURL == "" {
		return errors.New("upstream redirect URL is required")
	}
	if cfg.ResponseType == "" {
		cfg.ResponseType = ResponseTypeIDToken
	}
	if cfg.ResponseType != ResponseTypeIDToken && cfg.ResponseType != ResponseTypeCode {
		return fmt.Errorf("unsupported upstream response type %q", cfg.ResponseType)
	}
	if cfg.ResponseType == ResponseTypeCode && cfg.ClientSecret == "" {
		return errors.New("upstream client secret is required for the code response type")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	if !slices.Contains(cfg.Scopes, oidc.ScopeOpenID) {
		return errors.New("openid scope is required")
	}
	return nil
}

// LoginObserver receives login outcomes.
type LoginObserver interface {
	ObserveLogin(ctx context.Context, outcome string)
}

// Bridge runs the upstream handshake for paused interactions.
type Bridge struct {
	cfg      Config
	oauth2   *oauth2.Config
	verifier *oidc.IDTokenVerifier
	policy   *Policy
	client   *http.Client

	store    interaction.Store
	flash    interaction.FlashStore
	flashTTL time.Duration
	errs     *apierrors.Writer
	observer LoginObserver
	now      func() time.Time
}

// Deps holds the collaborators of a Bridge.
type Deps struct {
	Policy   *Policy
	Store    interaction.Store
	Flash    interaction.FlashStore
	Errors   *apierrors.Writer
	Observer LoginObserver

	// FlashTTL defaults to interaction.DefaultFlashTTL.
	FlashTTL time.Duration

	// HTTPClient is used for discovery, key fetches and code exchange.
	HTTPClient *http.Client
}

// NewBridge discovers the upstream provider and creates a Bridge.
func NewBridge(ctx context.Context, cfg Config, deps Deps) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upstream config: %w", err)
	}
	if deps.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, deps.HTTPClient)
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover upstream provider: %w", err)
	}

	flashTTL := deps.FlashTTL
	if flashTTL <= 0 {
		flashTTL = interaction.DefaultFlashTTL
	}

	logger.Debugw("upstream provider discovered", "issuer", cfg.Issuer, "response_type", cfg.ResponseType)

	return &Bridge{
		cfg: cfg,
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   provider.Endpoint().AuthURL,
				TokenURL:  provider.Endpoint().TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier: provider.VerifierContext(
			context.WithoutCancel(ctx),
			&oidc.Config{ClientID: cfg.ClientID},
		),
		policy:   deps.Policy,
		client:   deps.HTTPClient,
		store:    deps.Store,
		flash:    deps.Flash,
		flashTTL: flashTTL,
		errs:     deps.Errors,
		observer: deps.Observer,
		now:      time.Now,
	}, nil
}

// Routes registers the handshake routes. The caller installs the session guard.
func (b *Bridge) Routes(r chi.Router) {
	r.Get(Path, b.errs.ErrorHandler(b.handleGet))
	r.Post(Path, b.errs.ErrorHandler(b.Callback))
}

// handleGet starts the handshake, or completes it when the provider answered
// with a query response.
func (b *Bridge) handleGet(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	if q.Has("state") || q.Has("error") {
		return b.Callback(w, r)
	}
	return b.Start(w, r)
}

// Start redirects the browser to the upstream authorization endpoint.
func (b *Bridge) Start(w http.ResponseWriter, r *http.Request) error {
	st, err := interaction.MustState(r)
	if err != nil {
		return err
	}
	sess := st.Session

	up := &interaction.Upstream{
		State: oauth2.GenerateVerifier(),
		Nonce: oauth2.GenerateVerifier(),
	}
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", b.cfg.ResponseType),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
		oauth2.SetAuthURLParam("nonce", up.Nonce),
	}
	if b.cfg.TenantDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("domain_hint", b.cfg.TenantDomain))
	}
	if b.cfg.ResponseType == ResponseTypeCode {
		up.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(up.Verifier))
	}

	sess.Upstream = up
	if err := b.save(r.Context(), sess); err != nil {
		return err
	}

	http.Redirect(w, r, b.oauth2.AuthCodeURL(up.State, opts...), http.StatusFound)
	return nil
}

// Callback completes the handshake.
func (b *Bridge) Callback(w http.ResponseWriter, r *http.Request) error {
	st, err := interaction.MustState(r)
	if err != nil {
		return err
	}
	sess := st.Session
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		return oidcerrors.NewInvalidArgumentError("malformed identity provider response", err)
	}

	if upstreamErr := r.Form.Get("error"); upstreamErr != "" {
		logger.Warnw("identity provider returned an error",
			"uuid", sess.UUID, "error", upstreamErr, "error_description", r.Form.Get("error_description"))
		return b.fail(w, r, sess)
	}

	up := sess.Upstream
	if up == nil || up.State == "" || r.Form.Get("state") != up.State {
		logger.Warnw("identity provider response does not match the pending handshake", "uuid", sess.UUID)
		return b.fail(w, r, sess)
	}

	profile, err := b.profile(ctx, r, up)
	if err != nil {
		b.observe(ctx, telemetry.LoginUpstreamError)
		return oidcerrors.NewUpstreamFailureError("identity provider response could not be verified", err)
	}

	user, rejection, err := b.policy.Resolve(ctx, profile)
	if err != nil {
		b.observe(ctx, telemetry.LoginUpstreamError)
		return oidcerrors.NewUpstreamFailureError("failed to resolve account", err)
	}
	if rejection != nil {
		b.observe(ctx, telemetry.LoginRejected)
		logger.Infow("sign-in rejected", "uuid", sess.UUID, "upn", profile.PrincipalName, "reason", rejection.Reason)
		if err := b.flash.PutFlash(ctx, interaction.FailureFlashKey(sess.UUID), rejection.Message, b.flashTTL); err != nil {
			// Without the flash the failed screen would be blank; show the reason here instead.
			logger.Warnw("failed to store sign-in failure", "uuid", sess.UUID, "error", err)
			return rejection.Err()
		}
		http.Redirect(w, r, interaction.FailedURL(sess.UUID), http.StatusSeeOther)
		return nil
	}

	sess.AccountID = user.ID
	sess.AuthTime = b.now()
	sess.Upstream = nil
	sess.MarkDone(interaction.PromptLogin)
	sess.DropPrompt(interaction.PromptLogin)
	if err := b.save(ctx, sess); err != nil {
		return err
	}

	b.observe(ctx, telemetry.LoginSucceeded)
	logger.Debugw("sign-in completed", "uuid", sess.UUID, "account_id", user.ID)

	http.Redirect(w, r, interaction.RootURL(sess.UUID), http.StatusSeeOther)
	return nil
}

// profile extracts and verifies the ID token of the response.
func (b *Bridge) profile(ctx context.Context, r *http.Request, up *interaction.Upstream) (*Profile, error) {
	rawIDToken := r.Form.Get("id_token")
	if rawIDToken == "" {
		code := r.Form.Get("code")
		if code == "" {
			return nil, errors.New("response carries neither id_token nor code")
		}
		var opts []oauth2.AuthCodeOption
		if up.Verifier != "" {
			opts = append(opts, oauth2.VerifierOption(up.Verifier))
		}
		if b.client != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
		}
		token, err := b.oauth2.Exchange(ctx, code, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange code: %w", err)
		}
		rawIDToken, _ = token.Extra("id_token").(string)
		if rawIDToken == "" {
			return nil, errors.New("token response carries no id_token")
		}
	}

	idToken, err := b.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	if idToken.Nonce != up.Nonce {
		return nil, errors.New("ID token nonce does not match the pending handshake")
	}

	var claims struct {
		OID   string `json:"oid"`
		UPN   string `json:"upn"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode ID token claims: %w", err)
	}
	return &Profile{
		ObjectID:      claims.OID,
		PrincipalName: claims.UPN,
		Name:          claims.Name,
		Email:         claims.Email,
	}, nil
}

// fail sends the browser back to the interaction root, which shows the login screen again.
func (b *Bridge) fail(w http.ResponseWriter, r *http.Request, sess *interaction.Session) error {
	b.observe(r.Context(), telemetry.LoginUpstreamError)
	http.Redirect(w, r, interaction.RootURL(sess.UUID), http.StatusSeeOther)
	return nil
}

func (b *Bridge) save(ctx context.Context, sess *interaction.Session) error {
	err := b.store.Save(ctx, sess)
	if errors.Is(err, interaction.ErrNotFound) {
		return oidcerrors.NewSessionExpiredError()
	}
	if err != nil {
		return oidcerrors.NewInternalError("failed to save interaction", err)
	}
	return nil
}

func (b *Bridge) observe(ctx context.Context, outcome string) {
	if b.observer != nil {
		b.observer.ObserveLogin(ctx, outcome)
	}
}
