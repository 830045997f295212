// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/ory/fosite"
	"github.com/ory/fosite/compose"
	"github.com/ory/fosite/token/jwt"

	"github.com/tryextra/extra-oidc/pkg/authserver/keys"
	"github.com/tryextra/extra-oidc/pkg/authserver/storage"
	"github.com/tryextra/extra-oidc/pkg/clients"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

// Token uses accepted by Audiences.
const (
	UseAccessToken       = "access_token"
	UseClientCredentials = "client_credentials"
)

// ClientResolver resolves client ids to directory records.
type ClientResolver interface {
	Resolve(ctx context.Context, clientID string) (*clients.Record, error)
}

// newFositeConfig builds the fosite configuration from cfg.
func newFositeConfig(cfg *Config) *fosite.Config {
	return &fosite.Config{
		AccessTokenIssuer:     cfg.Issuer,
		IDTokenIssuer:         cfg.Issuer,
		AccessTokenLifespan:   cfg.AccessTokenLifespan,
		RefreshTokenLifespan:  cfg.RefreshTokenLifespan,
		AuthorizeCodeLifespan: cfg.AuthCodeLifespan,
		IDTokenLifespan:       cfg.IDTokenLifespan,
		GlobalSecret:          cfg.HMACSecret,
		TokenURL:              cfg.Issuer + TokenPath,
		ScopeStrategy:         fosite.ExactScopeStrategy,
		JWTScopeClaimKey:      jwt.JWTScopeFieldString,
		ClientSecretsHasher:   plaintextHasher{},
		MinParameterEntropy:   fosite.MinParameterEntropy,

		EnforcePKCEForPublicClients:    true,
		EnablePKCEPlainChallengeMethod: false,
		SendDebugMessagesToClients:     cfg.Development,
	}
}

// newProvider composes the fosite provider. Access tokens are JWTs signed with
// the signing key so the API can verify them offline; codes and refresh
// tokens are opaque HMAC tokens.
func newProvider(fcfg *fosite.Config, stor storage.Storage, signingKey *keys.SigningKeyData) fosite.OAuth2Provider {
	logger.Debugw("configuring fosite provider",
		"keyID", signingKey.KeyID,
		"algorithm", signingKey.Algorithm,
	)

	jwk := signingKey.FositeJWK()
	keyGetter := func(_ context.Context) (interface{}, error) { return jwk, nil }

	jwtStrategy := compose.NewOAuth2JWTStrategy(
		keyGetter,
		compose.NewOAuth2HMACStrategy(fcfg),
		fcfg,
	)

	return compose.Compose(
		fcfg,
		stor,
		&compose.CommonStrategy{
			CoreStrategy:               jwtStrategy,
			OpenIDConnectTokenStrategy: compose.NewOpenIDConnectStrategy(keyGetter, fcfg),
			Signer:                     &jwt.DefaultSigner{GetPrivateKey: keyGetter},
		},
		compose.OAuth2AuthorizeExplicitFactory,
		compose.OAuth2AuthorizeImplicitFactory,
		compose.OAuth2ClientCredentialsGrantFactory,
		compose.OAuth2RefreshTokenGrantFactory,
		compose.OAuth2TokenIntrospectionFactory,
		compose.OAuth2TokenRevocationFactory,
		compose.OAuth2PKCEFactory,

		compose.OpenIDConnectExplicitFactory,
		compose.OpenIDConnectImplicitFactory,
		compose.OpenIDConnectHybridFactory,
		compose.OpenIDConnectRefreshFactory,
	)
}

// ClientSource adapts the client resolver to the storage client lookup. A
// resolver miss becomes storage.ErrNotFound, which fosite reports as an
// unknown client.
func ClientSource(resolver ClientResolver, scopes []string, apiAudience string) storage.ClientSource {
	audience := Audiences(UseAccessToken, apiAudience)
	return storage.ClientSourceFunc(func(ctx context.Context, id string) (fosite.Client, error) {
		rec, err := resolver.Resolve(ctx, id)
		if errors.Is(err, clients.ErrNotFound) {
			return nil, fmt.Errorf("%w: client %s", storage.ErrNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		return rec.EngineClient(scopes, audience), nil
	})
}

// Audiences returns the audiences of a token issued for use: the API for
// access tokens and client credentials, nil otherwise.
func Audiences(use, apiAudience string) []string {
	switch use {
	case UseAccessToken, UseClientCredentials:
		if apiAudience == "" {
			return nil
		}
		return []string{apiAudience}
	default:
		return nil
	}
}

// plaintextHasher compares client secrets as issued by the directory service,
// which stores them in the clear.
type plaintextHasher struct{}

func (plaintextHasher) Compare(_ context.Context, hash, data []byte) error {
	if subtle.ConstantTimeCompare(hash, data) != 1 {
		return fosite.ErrInvalidClient.WithHint("The client secret is invalid.")
	}
	return nil
}

func (plaintextHasher) Hash(_ context.Context, data []byte) ([]byte, error) {
	return data, nil
}
