// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package directory

import "time"

// ApplicationTypeNative marks clients running on the end-user device.
const ApplicationTypeNative = "native"

// User is an account of the directory service.
type User struct {
	ID string `json:"id"`

	// IntraCode is the principal name the upstream identity provider reports (upn).
	IntraCode string `json:"intra_code"`

	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"firstname,omitempty"`
	LastName  string    `json:"lastname,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	Suspended       bool   `json:"suspended"`
	SuspendedReason string `json:"suspended_reason,omitempty"`
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// ClientLinks are the public pages of a client.
type ClientLinks struct {
	Homepage string `json:"homepage,omitempty"`
	Login    string `json:"login,omitempty"`
	Privacy  string `json:"privacy,omitempty"`
	TOS      string `json:"tos,omitempty"`
}

// ClientSession holds the logout settings of a client.
type ClientSession struct {
	PostLogoutRedirectURIs            []string `json:"post_logout_redirect_uris,omitempty"`
	FrontchannelLogoutURI             string   `json:"frontchannel_logout_uri,omitempty"`
	FrontchannelLogoutSessionRequired bool     `json:"frontchannel_logout_session_required,omitempty"`
	BackchannelLogoutURI              string   `json:"backchannel_logout_uri,omitempty"`
	BackchannelLogoutSessionRequired  bool     `json:"backchannel_logout_session_required,omitempty"`
}

// Client is an OAuth client registered in the directory service.
type Client struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Secret  string `json:"secret,omitempty"`
	Trusted bool   `json:"trusted"`

	// Type is the OpenID Connect application_type, "web" or "native".
	Type string `json:"type,omitempty"`

	RedirectURIs   []string      `json:"redirect_uris"`
	WebMessageURIs []string      `json:"web_message_uris,omitempty"`
	Links          ClientLinks   `json:"links"`
	Session        ClientSession `json:"session"`
	CreatedAt      time.Time     `json:"created_at,omitempty"`
}

// Authorization is a grant of scopes by a user to a client.
type Authorization struct {
	ID        string    `json:"id,omitempty"`
	User      string    `json:"user"`
	Client    string    `json:"client"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Page is a paginated find result.
type Page[T any] struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
	Skip  int `json:"skip"`
	Data  []T `json:"data"`
}

// Change is a notification emitted by the directory service when a record changes.
type Change struct {
	// Event is one of "created", "updated", "patched", "removed".
	Event string `json:"event"`

	// Service is the collection the record belongs to, e.g. "clients".
	Service string `json:"service"`

	ID string `json:"id"`
}
