// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ory/fosite"

	"github.com/tryextra/extra-oidc/pkg/authserver/storage"
	"github.com/tryextra/extra-oidc/pkg/clients"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
	"github.com/tryextra/extra-oidc/pkg/interaction"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

// authorize validates an authorization request and pauses it for the
// interaction controller. prompt=none requests are answered immediately.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ar, err := s.provider.NewAuthorizeRequest(ctx, r)
	if err != nil {
		logger.Debugw("invalid authorization request", "error", err)
		s.writeAuthorizeError(w, r, ar, err)
		return
	}

	bs := s.loadBrowserSession(r)
	sess := s.pause(ar, bs, s.now())

	if slices.Contains(interaction.SplitParam(ar.GetRequestForm().Get("prompt")), interaction.PromptNone) {
		s.authorizeSilently(w, r, ar, sess)
		return
	}

	if err := s.interactions.Save(ctx, sess); err != nil {
		s.writeAuthorizeError(w, r, ar, fosite.ErrServerError.WithWrap(err).WithDebug("failed to save interaction"))
		return
	}

	logger.Debugw("authorization request paused",
		"uuid", sess.UUID, "client_id", sess.ClientID, "account_known", sess.AccountID != "")

	s.interactionCookies.Set(w, sess.UUID, sess.ExpiresAt)
	http.Redirect(w, r, s.InteractionURL(sess.UUID), http.StatusSeeOther)
}

// pause builds the interaction for ar. The browser session supplies the
// account unless it authenticated longer ago than max_age allows.
func (s *Server) pause(ar fosite.AuthorizeRequester, bs *storage.BrowserSession, now time.Time) *interaction.Session {
	now = now.Truncate(time.Second)
	sess := &interaction.Session{
		UUID:        uuid.NewString(),
		ClientID:    ar.GetClient().GetID(),
		Params:      cloneValues(ar.GetRequestForm()),
		RequestedAt: now,
		ExpiresAt:   now.Add(s.cfg.InteractionTTL),
	}
	if bs != nil && withinMaxAge(ar.GetRequestForm().Get("max_age"), bs.AuthTime, now) {
		sess.AccountID = bs.AccountID
		sess.AuthTime = bs.AuthTime.Truncate(time.Second)
	}
	return sess
}

// authorizeSilently answers prompt=none from the browser session alone.
func (s *Server) authorizeSilently(w http.ResponseWriter, r *http.Request, ar fosite.AuthorizeRequester, sess *interaction.Session) {
	d, err := s.decider.Decide(r.Context(), sess)
	if err != nil {
		s.writeAuthorizeError(w, r, ar, fosite.ErrServerError.WithWrap(err).WithDebug(err.Error()))
		return
	}

	switch d.Outcome {
	case interaction.OutcomeLogin, interaction.OutcomeBypassSignin:
		s.writeAuthorizeError(w, r, ar, fosite.ErrLoginRequired.WithHint("End-User authentication is required."))
	case interaction.OutcomeConsent:
		s.writeAuthorizeError(w, r, ar, fosite.ErrConsentRequired.WithHint("End-User consent is required."))
	default:
		sess.Result = &interaction.Result{Consent: true}
		s.issue(w, r, ar, sess, d.Client)
	}
}

// resume continues a paused request once the interaction has a result.
func (s *Server) resume(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := chi.URLParam(r, "uuid")

	cookieID, ok := s.interactionCookies.Read(r)
	if !ok || cookieID != id {
		return oidcerrors.NewSessionExpiredError()
	}

	sess, err := s.interactions.Get(ctx, id)
	if errors.Is(err, interaction.ErrNotFound) {
		return oidcerrors.NewSessionExpiredError()
	}
	if err != nil {
		return oidcerrors.NewInternalError("failed to load interaction", err)
	}

	if sess.Result == nil {
		http.Redirect(w, r, s.InteractionURL(id), http.StatusSeeOther)
		return nil
	}

	// The interaction is consumed whatever the outcome.
	if err := s.interactions.Delete(ctx, id); err != nil {
		logger.Warnw("failed to delete interaction", "uuid", id, "error", err)
	}
	s.interactionCookies.Clear(w)

	ar, err := s.provider.NewAuthorizeRequest(ctx, replayRequest(r, sess.Params))
	if err != nil {
		s.writeAuthorizeError(w, r, ar, err)
		return nil
	}

	client, ok := ar.GetClient().(*clients.Client)
	if !ok {
		return oidcerrors.NewInternalError("unexpected client type", nil)
	}
	s.issue(w, r, ar, sess, client.Record)
	return nil
}

// issue runs the consent gate and writes the authorization response.
func (s *Server) issue(
	w http.ResponseWriter, r *http.Request, ar fosite.AuthorizeRequester, sess *interaction.Session, rec *clients.Record,
) {
	ctx := r.Context()

	if err := ConsentGate(sess.Result, rec, ar.GetResponseTypes()); err != nil {
		logger.Debugw("consent gate rejected request", "client_id", rec.ID, "error", err)
		s.writeAuthorizeError(w, r, ar, err)
		return
	}

	scopes := ar.GetRequestedScopes()
	if _, err := s.ledger.Grant(ctx, sess.AccountID, rec.ID, scopes); err != nil {
		s.writeAuthorizeError(w, r, ar, fosite.ErrServerError.WithWrap(err).WithDebug("failed to record authorization"))
		return
	}
	for _, scope := range scopes {
		ar.GrantScope(scope)
	}
	for _, aud := range Audiences(UseAccessToken, s.cfg.APIAudience) {
		ar.GrantAudience(aud)
	}

	account, err := s.accounts.FindAccount(ctx, sess.AccountID)
	if err != nil {
		s.writeAuthorizeError(w, r, ar, fosite.ErrServerError.WithWrap(err).WithDebug("failed to load account"))
		return
	}

	bs, err := s.rememberLogin(w, r, sess.AccountID, sess.AuthTime, rec.ID)
	if err != nil {
		s.writeAuthorizeError(w, r, ar, fosite.ErrServerError.WithWrap(err).WithDebug("failed to save browser session"))
		return
	}

	session := newIDTokenSession(sess.AccountID, rec.ID, bs.ID, sess.AuthTime, sess.RequestedAt,
		idTokenClaims(ar.GetResponseTypes(), account, scopes))

	resp, err := s.provider.NewAuthorizeResponse(ctx, ar, session)
	if err != nil {
		logger.Debugw("failed to create authorize response", "client_id", rec.ID, "error", err)
		s.writeAuthorizeError(w, r, ar, err)
		return
	}
	s.provider.WriteAuthorizeResponse(ctx, w, ar, resp)
}

// ConsentGate decides whether an interaction result permits issuance.
// A result without a consent decision is rejected with consent_required, or
// interaction_required for native clients asking for tokens through the browser.
func ConsentGate(result *interaction.Result, rec *clients.Record, responseTypes fosite.Arguments) error {
	if result != nil && result.Error != "" {
		rfc := fosite.ErrAccessDenied
		if result.Error != rfc.ErrorField {
			rfc = &fosite.RFC6749Error{ErrorField: result.Error, CodeField: http.StatusBadRequest}
		}
		return rfc.WithDescription(result.ErrorDescription)
	}

	if result == nil || !result.Consent {
		if rec.IsNative() && clients.RequestsInteractiveResponse(responseTypes) {
			return fosite.ErrInteractionRequired.WithHint("Native clients must complete the interaction.")
		}
		return fosite.ErrConsentRequired
	}
	return nil
}

// idTokenClaims returns the scope claims carried by the ID token. They are
// only added when no access token is issued to fetch them from userinfo.
func idTokenClaims(responseTypes fosite.Arguments, account *Account, scopes []string) map[string]interface{} {
	if !responseTypes.ExactOne("id_token") {
		return nil
	}
	claims := account.Claims(scopes)
	delete(claims, "sub")
	return claims
}

// writeAuthorizeError redirects the error to the client when the redirect URI
// is trusted and renders the error page otherwise.
func (s *Server) writeAuthorizeError(w http.ResponseWriter, r *http.Request, ar fosite.AuthorizeRequester, err error) {
	if ar != nil && ar.IsRedirectURIValid() {
		s.provider.WriteAuthorizeError(r.Context(), w, ar, err)
		return
	}
	s.errs.WriteError(w, r, renderableError(err))
}

// renderableError exposes the OAuth error and its description on the error page.
func renderableError(err error) error {
	rfc := fosite.ErrorToRFC6749Error(err)
	return oidcerrors.NewError(rfc.ErrorField, rfc.GetDescription(), rfc.CodeField, true, err)
}

// replayRequest rebuilds the original authorization request from params.
func replayRequest(r *http.Request, params url.Values) *http.Request {
	replay := r.Clone(r.Context())
	replay.Method = http.MethodGet
	replay.URL.Path = AuthorizePath
	replay.URL.RawQuery = params.Encode()
	replay.Body = http.NoBody
	replay.ContentLength = 0
	replay.Form = nil
	replay.PostForm = nil
	return replay
}

func withinMaxAge(raw string, authTime, now time.Time) bool {
	if raw == "" {
		return true
	}
	maxAge, err := strconv.Atoi(raw)
	if err != nil || maxAge < 0 {
		return true
	}
	if maxAge == 0 {
		return false
	}
	return !authTime.Add(time.Duration(maxAge) * time.Second).Before(now)
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = slices.Clone(vs)
	}
	return out
}
