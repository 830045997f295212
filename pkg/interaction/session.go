// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"net/url"
	"slices"
	"strings"
	"time"
)

// Prompt values of the OpenID Connect prompt parameter.
const (
	PromptLogin         = "login"
	PromptConsent       = "consent"
	PromptNone          = "none"
	PromptSelectAccount = "select_account"
)

// ParamBypassSignin is the client-issued marker that lets trusted clients skip
// the login screen.
const ParamBypassSignin = "bypass_signin"

// Session is a paused authorization request awaiting a human decision.
type Session struct {
	// UUID is assigned when the flow is paused and never changes.
	UUID string `json:"uuid"`

	// AccountID is set once login completes.
	AccountID string `json:"account_id,omitempty"`

	// AuthTime is when AccountID authenticated.
	AuthTime time.Time `json:"auth_time,omitempty"`

	ClientID string `json:"client_id"`

	// Params are the authorization request parameters. The prompt parameter is
	// rewritten as prompts are satisfied.
	Params url.Values `json:"params"`

	// Meta is nil until the first visit to the interaction root.
	Meta *Meta `json:"meta,omitempty"`

	// Upstream is the state of an identity provider handshake in progress.
	Upstream *Upstream `json:"upstream,omitempty"`

	// Result is the outcome the authorization engine resumes with.
	Result *Result `json:"result,omitempty"`

	RequestedAt time.Time `json:"requested_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Meta records completed interaction steps.
type Meta struct {
	Done []string `json:"done"`
}

// Upstream correlates an identity provider callback with the session.
type Upstream struct {
	State    string `json:"state"`
	Nonce    string `json:"nonce"`
	Verifier string `json:"verifier,omitempty"`
}

// Result is how an interaction finished.
type Result struct {
	// Consent is true when the end-user granted the request.
	Consent bool `json:"consent,omitempty"`

	// Error and ErrorDescription end the flow with an OAuth error instead.
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Prompts returns the requested prompts, empty when the prompt parameter is absent.
func (s *Session) Prompts() []string {
	return SplitParam(s.Params.Get("prompt"))
}

// Scopes returns the requested scopes. An absent scope parameter is the empty set.
func (s *Session) Scopes() []string {
	return SplitParam(s.Params.Get("scope"))
}

// HasPrompt reports whether prompt was requested.
func (s *Session) HasPrompt(prompt string) bool {
	return slices.Contains(s.Prompts(), prompt)
}

// IsDone reports whether step was completed in this interaction.
func (s *Session) IsDone(step string) bool {
	return s.Meta != nil && slices.Contains(s.Meta.Done, step)
}

// MarkDone records step as completed.
func (s *Session) MarkDone(step string) {
	if s.Meta == nil {
		s.Meta = &Meta{}
	}
	if !slices.Contains(s.Meta.Done, step) {
		s.Meta.Done = append(s.Meta.Done, step)
	}
}

// DropPrompt removes prompt from the prompt parameter so a resumed flow does not
// request it again.
func (s *Session) DropPrompt(prompt string) {
	if s.Params == nil {
		return
	}
	remaining := slices.DeleteFunc(s.Prompts(), func(p string) bool { return p == prompt })
	if len(remaining) == 0 {
		s.Params.Del("prompt")
		return
	}
	s.Params.Set("prompt", strings.Join(remaining, " "))
}

// BypassSignin reports whether the request carries the bypass_signin marker.
// Only presence counts; the value is ignored.
func (s *Session) BypassSignin() bool {
	return s.Params.Has(ParamBypassSignin)
}

// RemainingTTL is the time left before the session expires. It is never
// extended by saving the session.
func (s *Session) RemainingTTL(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// Expired reports whether the session has no time left.
func (s *Session) Expired(now time.Time) bool {
	return s.RemainingTTL(now) <= 0
}

// SplitParam splits a space-delimited parameter, dropping empty and repeated values.
func SplitParam(v string) []string {
	fields := strings.Fields(v)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
