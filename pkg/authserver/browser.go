// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tryextra/extra-oidc/pkg/authserver/storage"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

// loadBrowserSession returns the single sign-on session of r, or nil.
func (s *Server) loadBrowserSession(r *http.Request) *storage.BrowserSession {
	id, ok := s.sessionCookies.Read(r)
	if !ok {
		return nil
	}
	bs, err := s.storage.GetBrowserSession(r.Context(), id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warnw("failed to load browser session", "error", err)
		}
		return nil
	}
	return bs
}

// rememberLogin records that accountID obtained tokens for clientID in this
// browser. A different account replaces the existing session.
func (s *Server) rememberLogin(
	w http.ResponseWriter, r *http.Request, accountID string, authTime time.Time, clientID string,
) (*storage.BrowserSession, error) {
	ctx := r.Context()

	bs := s.loadBrowserSession(r)
	if bs != nil && bs.AccountID != accountID {
		if err := s.storage.DeleteBrowserSession(ctx, bs.ID); err != nil {
			logger.Warnw("failed to delete replaced browser session", "error", err)
		}
		bs = nil
	}
	if bs == nil {
		bs = &storage.BrowserSession{
			ID:        uuid.NewString(),
			AccountID: accountID,
			ExpiresAt: s.now().Add(s.cfg.SessionLifespan),
		}
	}
	if authTime.After(bs.AuthTime) {
		bs.AuthTime = authTime
	}
	bs.AddClient(clientID)

	if err := s.storage.SaveBrowserSession(ctx, bs); err != nil {
		return nil, fmt.Errorf("failed to save browser session: %w", err)
	}
	s.sessionCookies.Set(w, bs.ID, bs.ExpiresAt)
	return bs, nil
}

// forgetBrowserSession ends bs and clears its cookie.
func (s *Server) forgetBrowserSession(w http.ResponseWriter, r *http.Request, bs *storage.BrowserSession) {
	if err := s.storage.DeleteBrowserSession(r.Context(), bs.ID); err != nil {
		logger.Warnw("failed to delete browser session", "error", err)
	}
	s.sessionCookies.Clear(w)
}
