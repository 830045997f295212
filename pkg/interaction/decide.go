// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"context"
	"errors"
	"slices"

	"github.com/tryextra/extra-oidc/pkg/clients"
	"github.com/tryextra/extra-oidc/pkg/directory"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
	"github.com/tryextra/extra-oidc/pkg/ledger"
)

//go:generate mockgen -destination=mocks/mock_decide.go -package=mocks -source=decide.go

// Screen titles.
const (
	TitleFirstLogin = "Please Sign-in to continue."
	TitleReLogin    = "Sign-in again to continue."
	TitleConsent    = "Authorize access"
)

// Consent screen headlines.
const (
	HeadlineFullConsent    = "is requesting access to your account"
	HeadlineReducedConsent = "is asking for new permissions"
)

// Outcome is the next step chosen for an interaction.
type Outcome int

const (
	// OutcomeLogin shows the login screen.
	OutcomeLogin Outcome = iota
	// OutcomeBypassSignin skips the login screen and starts the identity provider handshake.
	OutcomeBypassSignin
	// OutcomeConsent shows the consent screen.
	OutcomeConsent
	// OutcomeGranted finishes the interaction with consent.
	OutcomeGranted
)

// Prompt is the prompt the outcome answers: login, consent or none.
func (o Outcome) Prompt() string {
	switch o {
	case OutcomeLogin, OutcomeBypassSignin:
		return PromptLogin
	case OutcomeConsent:
		return PromptConsent
	default:
		return PromptNone
	}
}

// Decision is the result of Engine.Decide.
type Decision struct {
	Outcome Outcome
	Client  *clients.Record

	// Title of the screen to render.
	Title string

	// Scopes to ask for. On a reduced consent screen these are only the missing ones.
	Scopes []string

	// GrantedScopes are already granted scopes, shown on a reduced consent screen.
	GrantedScopes []string

	// Reduced is set when an existing grant lacks some requested scopes.
	Reduced bool
}

// Headline is the consent screen headline.
func (d *Decision) Headline() string {
	if d.Reduced {
		return HeadlineReducedConsent
	}
	return HeadlineFullConsent
}

// ClientResolver resolves client ids.
type ClientResolver interface {
	Resolve(ctx context.Context, clientID string) (*clients.Record, error)
}

// GrantFinder reads the authorization ledger.
type GrantFinder interface {
	Find(ctx context.Context, userID, clientID string) (*directory.Authorization, error)
}

// PromptObserver is notified of every decision.
type PromptObserver interface {
	ObservePrompt(ctx context.Context, prompt, clientID string)
}

// Engine selects the next interaction step.
type Engine struct {
	clients  ClientResolver
	grants   GrantFinder
	observer PromptObserver
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPromptObserver reports decisions to o.
func WithPromptObserver(o PromptObserver) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an Engine.
func NewEngine(clients ClientResolver, grants GrantFinder, opts ...EngineOption) *Engine {
	e := &Engine{clients: clients, grants: grants}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NeedsLogin reports whether sess must (re)authenticate.
func NeedsLogin(sess *Session) bool {
	if sess.AccountID == "" {
		return true
	}
	return sess.HasPrompt(PromptLogin) && !sess.IsDone(PromptLogin)
}

// Decide picks the next step for sess. It does not modify sess or any store.
func (e *Engine) Decide(ctx context.Context, sess *Session) (*Decision, error) {
	client, err := e.clients.Resolve(ctx, sess.ClientID)
	if errors.Is(err, clients.ErrNotFound) {
		return nil, oidcerrors.NewUnknownClientError(sess.ClientID)
	}
	if err != nil {
		return nil, oidcerrors.NewUpstreamFailureError("failed to resolve client", err)
	}

	d, err := e.decide(ctx, sess, client)
	if err != nil {
		return nil, err
	}
	if e.observer != nil {
		e.observer.ObservePrompt(ctx, d.Outcome.Prompt(), client.ID)
	}
	return d, nil
}

func (e *Engine) decide(ctx context.Context, sess *Session, client *clients.Record) (*Decision, error) {
	if NeedsLogin(sess) {
		d := &Decision{Outcome: OutcomeLogin, Client: client, Title: TitleFirstLogin}
		if sess.AccountID != "" {
			d.Title = TitleReLogin
		}
		if client.Trusted && sess.BypassSignin() {
			d.Outcome = OutcomeBypassSignin
		}
		return d, nil
	}

	if client.Trusted {
		return &Decision{Outcome: OutcomeGranted, Client: client}, nil
	}

	requested := sess.Scopes()

	grant, err := e.grants.Find(ctx, sess.AccountID, client.ID)
	if err != nil {
		return nil, oidcerrors.NewUpstreamFailureError("failed to read authorizations", err)
	}
	if grant == nil {
		return &Decision{
			Outcome: OutcomeConsent,
			Client:  client,
			Title:   TitleConsent,
			Scopes:  requested,
		}, nil
	}

	missing := ledger.Missing(requested, grant.Scopes)
	if len(missing) == 0 && !sess.HasPrompt(PromptConsent) {
		return &Decision{Outcome: OutcomeGranted, Client: client}, nil
	}

	return &Decision{
		Outcome:       OutcomeConsent,
		Client:        client,
		Title:         TitleConsent,
		Scopes:        missing,
		GrantedScopes: slices.Clone(grant.Scopes),
		Reduced:       true,
	}, nil
}
