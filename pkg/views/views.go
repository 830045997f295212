// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package views renders the HTML pages of the interaction flow.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
	"github.com/tryextra/extra-oidc/pkg/directory"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticPath is where Static is mounted.
const StaticPath = "/static/"

// Page names.
const (
	pageLogin      = "login"
	pageConsent    = "consent"
	pageFailed     = "failed"
	pageError      = "error"
	pageSessionEnd = "session_end"

	pageFrontchannel = "frontchannel"
)

// LoginView is the data of the login screen.
type LoginView struct {
	Title      string
	ClientName string
	LoginURL   string
}

// ConsentView is the data of the consent screen.
type ConsentView struct {
	Title      string
	ClientName string
	Headline   string
	Links      directory.ClientLinks

	// Scopes are the scopes the end-user is asked for.
	Scopes []string

	// GrantedScopes are shown for context on a reduced consent screen.
	GrantedScopes []string

	Action string
}

// FailedView is the data of the login failure screen.
type FailedView struct {
	Title   string
	Message string
}

// SessionEndView is the data of the logout confirmation screen.
type SessionEndView struct {
	Title string

	// Form is the confirmation form issued by the authorization engine.
	Form template.HTML

	RedirectURI string
}

// FrontchannelView is the data of the page that loads the relying party
// logout frames and then leaves for RedirectURI.
type FrontchannelView struct {
	Title  string
	Frames []template.HTML

	RedirectURI string

	// TimeoutMS is how long the frames are given before leaving.
	TimeoutMS int64
}

type errorView struct {
	Title   string
	Message string
	Detail  string
}

// Renderer executes the embedded templates.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{pageLogin, pageConsent, pageFailed, pageError, pageSessionEnd, pageFrontchannel} {
		page, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout: %w", err)
		}
		if _, err := page.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = page
	}
	return r, nil
}

// render executes the page into a buffer first so a failure leaves w untouched.
func (r *Renderer) render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := r.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the embedded stylesheet under StaticPath.
func Static() http.Handler {
	return http.FileServer(http.FS(staticFS))
}

// Login renders the login screen.
func (r *Renderer) Login(w http.ResponseWriter, v LoginView) error {
	return r.render(w, http.StatusOK, pageLogin, v)
}

// Consent renders the consent screen.
func (r *Renderer) Consent(w http.ResponseWriter, v ConsentView) error {
	return r.render(w, http.StatusOK, pageConsent, v)
}

// Failed renders the login failure screen.
func (r *Renderer) Failed(w http.ResponseWriter, v FailedView) error {
	return r.render(w, http.StatusOK, pageFailed, v)
}

// SessionEnd renders the logout confirmation screen.
func (r *Renderer) SessionEnd(w http.ResponseWriter, v SessionEndView) error {
	return r.render(w, http.StatusOK, pageSessionEnd, v)
}

// Frontchannel renders the front-channel logout page.
func (r *Renderer) Frontchannel(w http.ResponseWriter, v FrontchannelView) error {
	return r.render(w, http.StatusOK, pageFrontchannel, v)
}

// RenderError implements apierrors.Renderer.
func (r *Renderer) RenderError(w http.ResponseWriter, page apierrors.Page) error {
	return r.render(w, page.Status, pageError, errorView{
		Title:   page.Reason,
		Message: page.Message,
		Detail:  page.Detail,
	})
}

// Compile-time interface checks.
var _ apierrors.Renderer = (*Renderer)(nil)
