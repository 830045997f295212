// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logout renders the end-session confirmation and the front-channel
// logout fan-out to relying parties.
package logout

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tryextra/extra-oidc/pkg/clients"
	"github.com/tryextra/extra-oidc/pkg/views"
)

// Title of the confirmation screen.
const Title = "Signing you out..."

// DefaultFrameTimeout bounds how long the browser waits for front-channel frames.
const DefaultFrameTimeout = 2500 * time.Millisecond

// ActionFrontchannelLogout is the action of a FrontchannelPayload.
const ActionFrontchannelLogout = "frontchannelLogout"

// Confirmation builds the confirmation screen around form, the engine-issued
// confirmation form. The state is appended to postLogoutRedirectURI when set.
func Confirmation(form template.HTML, postLogoutRedirectURI, state string) views.SessionEndView {
	return views.SessionEndView{
		Title:       Title,
		Form:        form,
		RedirectURI: RedirectWithState(postLogoutRedirectURI, state),
	}
}

// RedirectWithState appends state to the post-logout redirect URI.
func RedirectWithState(postLogoutRedirectURI, state string) string {
	if state == "" || postLogoutRedirectURI == "" {
		return postLogoutRedirectURI
	}
	sep := "?"
	if strings.Contains(postLogoutRedirectURI, "?") {
		sep = "&"
	}
	return postLogoutRedirectURI + sep + url.Values{"state": {state}}.Encode()
}

// ConfirmationForm renders the hidden confirmation form posted to action.
func ConfirmationForm(action, xsrf string) (template.HTML, error) {
	var b strings.Builder
	if err := confirmationForm.Execute(&b, struct{ Action, XSRF string }{action, xsrf}); err != nil {
		return "", fmt.Errorf("failed to render confirmation form: %w", err)
	}
	return template.HTML(b.String()), nil //nolint:gosec // produced by html/template
}

var confirmationForm = template.Must(template.New("form").Parse(
	`<form id="op.logoutForm" method="post" action="{{.Action}}">` +
		`<input type="hidden" name="xsrf" value="{{.XSRF}}"/>` +
		`<button type="submit" name="logout" value="yes">Yes, sign me out</button>` +
		`<button type="submit">No, stay signed in</button>` +
		`</form>`))

// PayloadData is the data of a FrontchannelPayload.
type PayloadData struct {
	Frames                []string `json:"frames"`
	PostLogoutRedirectURI string   `json:"postLogoutRedirectUri"`

	// Timeout is in milliseconds.
	Timeout int64 `json:"timeout"`
}

// Payload instructs the browser to load every frame before leaving.
type Payload struct {
	Action string      `json:"action"`
	Data   PayloadData `json:"data"`
}

// FrontchannelPayload builds the fan-out payload.
func FrontchannelPayload(frames []string, postLogoutRedirectURI string, timeout time.Duration) Payload {
	if frames == nil {
		frames = []string{}
	}
	return Payload{
		Action: ActionFrontchannelLogout,
		Data: PayloadData{
			Frames:                frames,
			PostLogoutRedirectURI: postLogoutRedirectURI,
			Timeout:               timeout.Milliseconds(),
		},
	}
}

// FrontchannelPage is the browser rendition of p: the frames are loaded by the
// page itself, which then leaves for the post-logout redirect URI.
func FrontchannelPage(p Payload) views.FrontchannelView {
	frames := make([]template.HTML, 0, len(p.Data.Frames))
	for _, f := range p.Data.Frames {
		frames = append(frames, template.HTML(f)) //nolint:gosec // built by Frames with an escaped src
	}
	return views.FrontchannelView{
		Title:       Title,
		Frames:      frames,
		RedirectURI: p.Data.PostLogoutRedirectURI,
		TimeoutMS:   p.Data.Timeout,
	}
}

// WantsPayload reports whether the caller asked for the JSON payload rather
// than the frames page.
func WantsPayload(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// WritePayload writes p as JSON.
func WritePayload(w http.ResponseWriter, p Payload) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	return json.NewEncoder(w).Encode(p)
}

// Frames returns an iframe for every client with a front-channel logout URI.
// iss and sid are added when the client requires the session.
func Frames(records []*clients.Record, issuer, sid string) []string {
	frames := make([]string, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.FrontchannelLogoutURI == "" {
			continue
		}
		target, err := url.Parse(rec.FrontchannelLogoutURI)
		if err != nil {
			continue
		}
		if rec.FrontchannelLogoutSessionRequired {
			q := target.Query()
			q.Set("iss", issuer)
			q.Set("sid", sid)
			target.RawQuery = q.Encode()
		}
		frames = append(frames, fmt.Sprintf(`<iframe src="%s"></iframe>`, template.HTMLEscapeString(target.String())))
	}
	return frames
}
