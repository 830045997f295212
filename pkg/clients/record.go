// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package clients

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/ory/fosite"

	"github.com/tryextra/extra-oidc/pkg/directory"
)

// TokenEndpointAuthMethod is the only client authentication method accepted.
const TokenEndpointAuthMethod = "client_secret_basic"

// grantTypes is the capability every directory client is given.
var grantTypes = []string{
	"implicit",
	"authorization_code",
	"refresh_token",
	"client_credentials",
}

var responseTypes = []string{
	"code id_token token",
	"code id_token",
	"code token",
	"code",
	"id_token token",
	"id_token",
	"none",
}

// Record is a client as seen by the interaction controller and the authorization engine.
type Record struct {
	ID              string
	Name            string
	Trusted         bool
	ApplicationType string
	Secret          string
	CreatedAt       time.Time

	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	WebMessageURIs         []string
	Links                  directory.ClientLinks

	FrontchannelLogoutURI             string
	FrontchannelLogoutSessionRequired bool
	BackchannelLogoutURI              string
	BackchannelLogoutSessionRequired  bool

	GrantTypes              []string
	ResponseTypes           []string
	TokenEndpointAuthMethod string
}

// NewRecord normalizes a directory client.
func NewRecord(c *directory.Client) (*Record, error) {
	if c == nil || c.ID == "" {
		return nil, errors.New("client record has no id")
	}

	appType := c.Type
	if appType == "" {
		appType = "web"
	}

	return &Record{
		ID:                                c.ID,
		Name:                              c.Name,
		Trusted:                           c.Trusted,
		ApplicationType:                   appType,
		Secret:                            c.Secret,
		CreatedAt:                         c.CreatedAt,
		RedirectURIs:                      slices.Clone(c.RedirectURIs),
		PostLogoutRedirectURIs:            slices.Clone(c.Session.PostLogoutRedirectURIs),
		WebMessageURIs:                    slices.Clone(c.WebMessageURIs),
		Links:                             c.Links,
		FrontchannelLogoutURI:             c.Session.FrontchannelLogoutURI,
		FrontchannelLogoutSessionRequired: c.Session.FrontchannelLogoutSessionRequired,
		BackchannelLogoutURI:              c.Session.BackchannelLogoutURI,
		BackchannelLogoutSessionRequired:  c.Session.BackchannelLogoutSessionRequired,
		GrantTypes:                        slices.Clone(grantTypes),
		ResponseTypes:                     slices.Clone(responseTypes),
		TokenEndpointAuthMethod:           TokenEndpointAuthMethod,
	}, nil
}

// IsNative reports whether the client runs on the end-user device.
func (r *Record) IsNative() bool {
	return r.ApplicationType == directory.ApplicationTypeNative
}

// AllowsPostLogoutRedirect reports whether uri is registered for the client.
func (r *Record) AllowsPostLogoutRedirect(uri string) bool {
	return slices.Contains(r.PostLogoutRedirectURIs, uri)
}

// Client is the authorization engine view of a Record.
type Client struct {
	*fosite.DefaultOpenIDConnectClient
	Record *Record
}

// EngineClient builds the fosite client for r. scopes is the provider-wide scope
// list; audience the audiences the client may request.
func (r *Record) EngineClient(scopes, audience []string) *Client {
	public := r.Secret == ""
	authMethod := r.TokenEndpointAuthMethod
	if public {
		authMethod = "none"
	}

	return &Client{
		DefaultOpenIDConnectClient: &fosite.DefaultOpenIDConnectClient{
			DefaultClient: &fosite.DefaultClient{
				ID:            r.ID,
				Secret:        []byte(r.Secret),
				RedirectURIs:  slices.Clone(r.RedirectURIs),
				GrantTypes:    slices.Clone(r.GrantTypes),
				ResponseTypes: slices.Clone(r.ResponseTypes),
				Scopes:        slices.Clone(scopes),
				Audience:      slices.Clone(audience),
				Public:        public,
			},
			TokenEndpointAuthMethod: authMethod,
		},
		Record: r,
	}
}

// RequestsInteractiveResponse reports whether responseTypes ask for a token
// delivered through the browser.
func RequestsInteractiveResponse(responseTypes []string) bool {
	for _, rt := range responseTypes {
		for _, part := range strings.Fields(rt) {
			if part == "token" || part == "id_token" {
				return true
			}
		}
	}
	return false
}

// Compile-time interface checks.
var _ fosite.OpenIDConnectClient = (*Client)(nil)
