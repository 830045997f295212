// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/tryextra/extra-oidc/pkg/authserver/storage"
	"github.com/tryextra/extra-oidc/pkg/clients"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
	"github.com/tryextra/extra-oidc/pkg/logger"
	"github.com/tryextra/extra-oidc/pkg/logout"
)

// endSession starts RP-initiated logout and renders the confirmation screen.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		return oidcerrors.NewInvalidArgumentError("malformed end session request", err)
	}

	clientID := r.Form.Get("client_id")
	if hint := r.Form.Get("id_token_hint"); hint != "" {
		token, err := s.hintVerifier.Verify(ctx, hint)
		if err != nil {
			return oidcerrors.NewInvalidArgumentError("id_token_hint could not be validated", err)
		}
		switch {
		case len(token.Audience) == 0:
			return oidcerrors.NewInvalidArgumentError("id_token_hint has no audience", nil)
		case clientID == "":
			clientID = token.Audience[0]
		case clientID != token.Audience[0]:
			return oidcerrors.NewInvalidArgumentError("client_id does not match the id_token_hint audience", nil)
		}
	}

	redirect := s.cfg.PostLogoutRedirectURI
	if uri := r.Form.Get("post_logout_redirect_uri"); uri != "" {
		if clientID == "" {
			return oidcerrors.NewInvalidArgumentError(
				"post_logout_redirect_uri requires id_token_hint or client_id", nil)
		}
		rec, err := s.clients.Resolve(ctx, clientID)
		if errors.Is(err, clients.ErrNotFound) {
			return oidcerrors.NewUnknownClientError(clientID)
		}
		if err != nil {
			return oidcerrors.NewUpstreamFailureError("failed to resolve client", err)
		}
		if !rec.AllowsPostLogoutRedirect(uri) {
			return oidcerrors.NewInvalidArgumentError("post_logout_redirect_uri not registered", nil)
		}
		redirect = uri
	}
	state := r.Form.Get("state")

	bs := s.loadBrowserSession(r)
	if bs == nil {
		http.Redirect(w, r, logout.RedirectWithState(redirect, state), http.StatusSeeOther)
		return nil
	}

	xsrf, err := randomToken()
	if err != nil {
		return oidcerrors.NewInternalError("failed to generate xsrf token", err)
	}
	bs.Logout = &storage.PendingLogout{
		XSRF:                  xsrf,
		ClientID:              clientID,
		PostLogoutRedirectURI: redirect,
		State:                 state,
	}
	if err := s.storage.SaveBrowserSession(ctx, bs); err != nil {
		return oidcerrors.NewInternalError("failed to save browser session", err)
	}

	form, err := logout.ConfirmationForm(SessionEndConfirmPath, xsrf)
	if err != nil {
		return oidcerrors.NewInternalError("failed to render logout form", err)
	}
	return s.views.SessionEnd(w, logout.Confirmation(form, redirect, state))
}

// confirmEndSession ends the browser session and fans the logout out to the
// relying parties that obtained tokens in it.
func (s *Server) confirmEndSession(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		return oidcerrors.NewInvalidArgumentError("malformed end session confirmation", err)
	}

	bs := s.loadBrowserSession(r)
	if bs == nil || bs.Logout == nil {
		return oidcerrors.NewInvalidArgumentError("could not find logout details", nil)
	}
	pending := bs.Logout
	if subtle.ConstantTimeCompare([]byte(pending.XSRF), []byte(r.PostForm.Get("xsrf"))) != 1 {
		return oidcerrors.NewInvalidArgumentError("xsrf token invalid", nil)
	}
	redirect := logout.RedirectWithState(pending.PostLogoutRedirectURI, pending.State)

	if r.PostForm.Get("logout") == "" {
		bs.Logout = nil
		if err := s.storage.SaveBrowserSession(ctx, bs); err != nil {
			return oidcerrors.NewInternalError("failed to save browser session", err)
		}
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return nil
	}

	records := make([]*clients.Record, 0, len(bs.Clients))
	for _, id := range bs.Clients {
		rec, err := s.clients.Resolve(ctx, id)
		if err != nil {
			logger.Warnw("skipping client in logout fan-out", "client_id", id, "error", err)
			continue
		}
		records = append(records, rec)
	}
	frames := logout.Frames(records, s.cfg.Issuer, bs.ID)

	s.forgetBrowserSession(w, r, bs)
	if s.observer != nil {
		s.observer.ObserveLogout(ctx, len(frames))
	}
	logger.Debugw("browser session ended", "account_id", bs.AccountID, "frames", len(frames))

	if len(frames) == 0 {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return nil
	}
	payload := logout.FrontchannelPayload(frames, redirect, s.frameTimeout())
	if logout.WantsPayload(r) {
		return logout.WritePayload(w, payload)
	}
	return s.views.Frontchannel(w, logout.FrontchannelPage(payload))
}

func (s *Server) frameTimeout() time.Duration {
	if s.cfg.FrontchannelLogoutTimeout > 0 {
		return s.cfg.FrontchannelLogoutTimeout
	}
	return logout.DefaultFrameTimeout
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
