// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/tryextra/extra-oidc/pkg/authserver/keys"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

const (
	// DefaultJWKSCacheMaxAge is the Cache-Control max-age for the JWKS endpoint (1 hour).
	DefaultJWKSCacheMaxAge = 3600

	// DefaultDiscoveryCacheMaxAge is the Cache-Control max-age for the discovery endpoint (1 hour).
	DefaultDiscoveryCacheMaxAge = 3600
)

// discoveryDocument is the OpenID Provider metadata.
type discoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
	RevocationEndpoint    string `json:"revocation_endpoint"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`

	ScopesSupported                   []string `json:"scopes_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	ResponseModesSupported            []string `json:"response_modes_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ClaimsParameterSupported          bool     `json:"claims_parameter_supported"`
	RequestParameterSupported         bool     `json:"request_parameter_supported"`

	FrontchannelLogoutSupported        bool `json:"frontchannel_logout_supported"`
	FrontchannelLogoutSessionSupported bool `json:"frontchannel_logout_session_supported"`
}

func newDiscoveryDocument(cfg *Config, signingAlg string) *discoveryDocument {
	issuer := cfg.Issuer
	return &discoveryDocument{
		Issuer:                issuer,
		AuthorizationEndpoint: issuer + AuthorizePath,
		TokenEndpoint:         issuer + TokenPath,
		UserinfoEndpoint:      issuer + UserinfoPath,
		JWKSURI:               issuer + JWKSPath,
		RevocationEndpoint:    issuer + RevokePath,
		IntrospectionEndpoint: issuer + IntrospectPath,
		EndSessionEndpoint:    issuer + SessionEndPath,

		ScopesSupported: slices.Clone(cfg.Scopes),
		ClaimsSupported: []string{
			"sub", "unique_name", "email", "name", "given_name", "family_name", "picture", "updated_at",
			"auth_time", "nonce", "sid",
		},
		ResponseTypesSupported: []string{
			"code id_token token",
			"code id_token",
			"code token",
			"code",
			"id_token token",
			"id_token",
		},
		ResponseModesSupported: []string{"query", "fragment", "form_post"},
		GrantTypesSupported: []string{
			"authorization_code",
			"implicit",
			"refresh_token",
			"client_credentials",
		},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{signingAlg},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "none"},
		CodeChallengeMethodsSupported:     []string{"S256"},

		FrontchannelLogoutSupported:        true,
		FrontchannelLogoutSessionSupported: true,
	}
}

func (d *discoveryDocument) marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode discovery document: %w", err)
	}
	return data, nil
}

// serveDiscovery serves the OpenID Provider metadata.
func (s *Server) serveDiscovery(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", DefaultDiscoveryCacheMaxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(s.discovery)
}

// serveJWKS serves the public signing keys.
func (s *Server) serveJWKS(w http.ResponseWriter, r *http.Request) {
	set, err := keys.JWKS(r.Context(), s.keys)
	if err != nil {
		logger.Errorw("failed to load public keys", "error", err.Error())
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(set)
	if err != nil {
		logger.Errorw("failed to encode JWKS", "error", err.Error())
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", DefaultJWKSCacheMaxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}
