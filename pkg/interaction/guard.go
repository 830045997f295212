// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
)

// State is what the guard attaches to a request.
type State struct {
	Session *Session

	// Prompts is the split prompt parameter, empty when absent.
	Prompts []string

	// Scopes is the split scope parameter.
	Scopes []string
}

type stateKey struct{}

// WithState returns a context carrying st.
func WithState(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// FromContext returns the state attached by the guard.
func FromContext(ctx context.Context) (*State, bool) {
	st, ok := ctx.Value(stateKey{}).(*State)
	return st, ok && st != nil
}

// Guard rejects requests that do not belong to a live paused interaction.
type Guard struct {
	store   Store
	cookies *CookieCodec
	errs    *apierrors.Writer
}

// NewGuard creates a Guard.
func NewGuard(store Store, cookies *CookieCodec, errs *apierrors.Writer) *Guard {
	return &Guard{store: store, cookies: cookies, errs: errs}
}

// Load validates r and returns the interaction it refers to. Any mismatch is
// reported as a session expired error.
func (g *Guard) Load(r *http.Request) (*State, error) {
	uuid, ok := g.cookies.Read(r)
	if !ok {
		return nil, oidcerrors.NewSessionExpiredError()
	}

	sess, err := g.store.Get(r.Context(), uuid)
	if errors.Is(err, ErrNotFound) {
		return nil, oidcerrors.NewSessionExpiredError()
	}
	if err != nil {
		return nil, oidcerrors.NewInternalError("failed to load interaction", err)
	}
	if sess.UUID == "" || sess.UUID != uuid {
		return nil, oidcerrors.NewSessionExpiredError()
	}

	if requestID := r.URL.Query().Get("request_id"); requestID != "" && requestID != sess.UUID {
		return nil, oidcerrors.NewSessionExpiredError()
	}

	return &State{
		Session: sess,
		Prompts: sess.Prompts(),
		Scopes:  sess.Scopes(),
	}, nil
}

// Middleware runs Load before next and attaches the result to the request context.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := g.Load(r)
		if err != nil {
			g.errs.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithState(r.Context(), st)))
	})
}

// MustState returns the guarded state of r, or a session expired error when the
// handler was mounted without the guard.
func MustState(r *http.Request) (*State, error) {
	st, ok := FromContext(r.Context())
	if !ok {
		return nil, oidcerrors.NewSessionExpiredError()
	}
	return st, nil
}
