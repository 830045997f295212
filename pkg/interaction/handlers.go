// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
	"github.com/tryextra/extra-oidc/pkg/logger"
	"github.com/tryextra/extra-oidc/pkg/views"
)

// Interaction routes.
const (
	BasePath    = "/interaction"
	RootPath    = BasePath + "/"
	ConsentPath = BasePath + "/consent"
	FailedPath  = BasePath + "/failed"
)

// DefaultFlashTTL is how long a login failure message stays readable.
const DefaultFlashTTL = time.Minute

// RootURL is the interaction entry point for uuid.
func RootURL(uuid string) string {
	return RootPath + "?" + url.Values{"request_id": {uuid}}.Encode()
}

// FailedURL is the login failure screen for uuid.
func FailedURL(uuid string) string {
	return FailedPath + "?" + url.Values{"request_id": {uuid}}.Encode()
}

// FailureFlashKey is the flash key of the login failure message of uuid.
func FailureFlashKey(uuid string) string {
	return "failed:" + uuid
}

// ResumeURLFunc returns where the authorization engine resumes uuid.
type ResumeURLFunc func(uuid string) string

// Handler serves the interaction screens.
type Handler struct {
	store     Store
	flash     FlashStore
	engine    *Engine
	views     *views.Renderer
	errs      *apierrors.Writer
	loginPath string
	resumeURL ResumeURLFunc
}

// HandlerConfig holds the dependencies of a Handler.
type HandlerConfig struct {
	Store  Store
	Flash  FlashStore
	Engine *Engine
	Views  *views.Renderer
	Errors *apierrors.Writer

	// LoginPath starts the identity provider handshake, e.g. /interaction/azuread.
	LoginPath string

	// ResumeURL builds the authorization engine resume location.
	ResumeURL ResumeURLFunc
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		store:     cfg.Store,
		flash:     cfg.Flash,
		engine:    cfg.Engine,
		views:     cfg.Views,
		errs:      cfg.Errors,
		loginPath: cfg.LoginPath,
		resumeURL: cfg.ResumeURL,
	}
}

// Routes registers the guarded interaction routes. The caller installs the guard.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.errs.ErrorHandler(h.Root))
	r.Post("/consent", h.errs.ErrorHandler(h.Consent))
}

// Root decides and renders the next step of the interaction.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) error {
	st, err := MustState(r)
	if err != nil {
		return err
	}
	sess := st.Session

	if sess.Meta == nil {
		sess.Meta = &Meta{Done: []string{}}
		if err := h.save(r, sess); err != nil {
			return err
		}
	}

	d, err := h.engine.Decide(r.Context(), sess)
	if err != nil {
		return err
	}

	logger.Debugw("interaction decision",
		"uuid", sess.UUID, "client_id", sess.ClientID, "prompt", d.Outcome.Prompt())

	switch d.Outcome {
	case OutcomeLogin:
		return h.views.Login(w, views.LoginView{
			Title:      d.Title,
			ClientName: d.Client.Name,
			LoginURL:   h.loginURL(sess.UUID),
		})
	case OutcomeBypassSignin:
		http.Redirect(w, r, h.loginURL(sess.UUID), http.StatusSeeOther)
		return nil
	case OutcomeConsent:
		return h.views.Consent(w, views.ConsentView{
			Title:         d.Title,
			ClientName:    d.Client.Name,
			Headline:      d.Headline(),
			Links:         d.Client.Links,
			Scopes:        d.Scopes,
			GrantedScopes: d.GrantedScopes,
			Action:        ConsentPath + "?" + url.Values{"request_id": {sess.UUID}}.Encode(),
		})
	default:
		return h.Finish(w, r, sess, &Result{Consent: true})
	}
}

// Consent handles the consent form submission.
func (h *Handler) Consent(w http.ResponseWriter, r *http.Request) error {
	st, err := MustState(r)
	if err != nil {
		return err
	}
	if err := r.ParseForm(); err != nil {
		return oidcerrors.NewInvalidArgumentError("malformed consent form", err)
	}

	if r.PostForm.Get("decision") == "consent" {
		return h.Finish(w, r, st.Session, &Result{Consent: true})
	}

	denied := oidcerrors.NewConsentDeniedError()
	return h.Finish(w, r, st.Session, &Result{
		Error:            "access_denied",
		ErrorDescription: denied.Message,
	})
}

// Failed renders the login failure screen. It does not require a live interaction.
func (h *Handler) Failed(w http.ResponseWriter, r *http.Request) error {
	msg := ""
	if requestID := r.URL.Query().Get("request_id"); requestID != "" {
		var err error
		msg, err = h.flash.TakeFlash(r.Context(), FailureFlashKey(requestID))
		if err != nil {
			logger.Warnw("failed to read login failure message", "request_id", requestID, "error", err)
		}
	}
	return h.views.Failed(w, views.FailedView{Title: "Sign-in failed", Message: msg})
}

// Finish stores result on the interaction and hands the browser back to the
// authorization engine.
func (h *Handler) Finish(w http.ResponseWriter, r *http.Request, sess *Session, result *Result) error {
	sess.Result = result
	if err := h.save(r, sess); err != nil {
		return err
	}
	http.Redirect(w, r, h.resumeURL(sess.UUID), http.StatusSeeOther)
	return nil
}

func (h *Handler) save(r *http.Request, sess *Session) error {
	err := h.store.Save(r.Context(), sess)
	if errors.Is(err, ErrNotFound) {
		return oidcerrors.NewSessionExpiredError()
	}
	if err != nil {
		return oidcerrors.NewInternalError("failed to save interaction", err)
	}
	return nil
}

func (h *Handler) loginURL(uuid string) string {
	return h.loginPath + "?" + url.Values{"request_id": {uuid}}.Encode()
}
