// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ory/fosite"

	"github.com/tryextra/extra-oidc/pkg/logger"
)

// token handles the token endpoint for every enabled grant.
func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The stored authorize session replaces this one for code and refresh grants.
	accessRequest, err := s.provider.NewAccessRequest(ctx, r, NewSession("", ""))
	if err != nil {
		logger.Debugw("failed to create access request", "error", err)
		s.provider.WriteAccessError(ctx, w, accessRequest, err)
		return
	}

	if accessRequest.GetGrantTypes().ExactOne("client_credentials") {
		clientID := accessRequest.GetClient().GetID()
		for _, scope := range accessRequest.GetRequestedScopes() {
			accessRequest.GrantScope(scope)
		}
		for _, aud := range Audiences(UseClientCredentials, s.cfg.APIAudience) {
			accessRequest.GrantAudience(aud)
		}
		if sess, ok := accessRequest.GetSession().(*Session); ok {
			sess.ClientID = clientID
		}
	}

	response, err := s.provider.NewAccessResponse(ctx, accessRequest)
	if err != nil {
		logger.Errorw("failed to create access response", "error", err)
		s.provider.WriteAccessError(ctx, w, accessRequest, err)
		return
	}

	s.provider.WriteAccessResponse(ctx, w, accessRequest, response)
}

// revoke handles RFC 7009 token revocation.
func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := s.provider.NewRevocationRequest(ctx, r)
	if err != nil {
		logger.Debugw("revocation request rejected", "error", err)
	}
	s.provider.WriteRevocationResponse(ctx, w, err)
}

// introspect handles RFC 7662 token introspection.
func (s *Server) introspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ir, err := s.provider.NewIntrospectionRequest(ctx, r, NewSession("", ""))
	if err != nil {
		logger.Debugw("introspection request rejected", "error", err)
		s.provider.WriteIntrospectionError(ctx, w, err)
		return
	}
	s.provider.WriteIntrospectionResponse(ctx, w, ir)
}

// userinfo returns the claims of the access token's subject, filtered by the
// granted scopes.
func (s *Server) userinfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	use, ar, err := s.provider.IntrospectToken(ctx, fosite.AccessTokenFromRequest(r), fosite.AccessToken, NewSession("", ""))
	if err != nil {
		writeBearerError(w, fosite.ErrorToRFC6749Error(err))
		return
	}
	if use != fosite.AccessToken {
		writeBearerError(w, fosite.ErrInvalidTokenFormat.WithHint("Only access tokens are accepted."))
		return
	}
	if !ar.GetGrantedScopes().Has(ScopeOpenID) {
		writeBearerError(w, fosite.ErrRequestForbidden.WithHint("The openid scope is required."))
		return
	}

	subject := ar.GetSession().GetSubject()
	if subject == "" {
		writeBearerError(w, fosite.ErrRequestUnauthorized.WithHint("The access token has no end-user."))
		return
	}

	account, err := s.accounts.FindAccount(ctx, subject)
	if err != nil {
		logger.Errorw("failed to load account for userinfo", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(account.Claims(ar.GetGrantedScopes()))
	if err != nil {
		logger.Errorw("failed to encode userinfo", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// writeBearerError writes an RFC 6750 error response.
func writeBearerError(w http.ResponseWriter, rfc *fosite.RFC6749Error) {
	code := rfc.CodeField
	if code == 0 || code == http.StatusBadRequest {
		code = http.StatusUnauthorized
	}

	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer error="%s", error_description="%s"`, rfc.ErrorField, rfc.GetDescription()))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             rfc.ErrorField,
		"error_description": rfc.GetDescription(),
	})
}
