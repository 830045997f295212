// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
)

type failingStore struct {
	Store
}

func (failingStore) Get(context.Context, string) (*Session, error) {
	return nil, errors.New("connection refused")
}

type guardFixture struct {
	store  *MemoryStore
	codec  *CookieCodec
	guard  *Guard
	sessID string
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()

	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	codec, err := NewCookieCodec("", []string{"k1"}, false)
	require.NoError(t, err)

	sess := testSession(time.Hour)
	sess.Params.Set("prompt", "login consent")
	require.NoError(t, store.Save(context.Background(), sess))

	return &guardFixture{
		store:  store,
		codec:  codec,
		guard:  NewGuard(store, codec, apierrors.NewWriter(nil, false)),
		sessID: sess.UUID,
	}
}

func (f *guardFixture) request(t *testing.T, target, cookieUUID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookieUUID != "" {
		rec := httptest.NewRecorder()
		f.codec.Set(rec, cookieUUID, time.Now().Add(time.Hour))
		req.AddCookie(rec.Result().Cookies()[0])
	}
	return req
}

func TestGuard_Load(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t)

	st, err := f.guard.Load(f.request(t, RootURL(f.sessID), f.sessID))
	require.NoError(t, err)
	assert.Equal(t, f.sessID, st.Session.UUID)
	assert.Equal(t, []string{"login", "consent"}, st.Prompts)
	assert.Equal(t, []string{"openid", "email"}, st.Scopes)

	// request_id is optional.
	_, err = f.guard.Load(f.request(t, RootPath, f.sessID))
	require.NoError(t, err)
}

func TestGuard_LoadRejects(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t)

	tests := []struct {
		name   string
		target string
		cookie string
	}{
		{"no cookie", RootURL(f.sessID), ""},
		{"unknown interaction", RootURL("other"), "other"},
		{"request id mismatch", RootURL("other"), f.sessID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := f.guard.Load(f.request(t, tt.target, tt.cookie))
			require.Error(t, err)
			assert.True(t, oidcerrors.IsType(err, oidcerrors.ErrSessionExpired))
			assert.Equal(t, http.StatusUnauthorized, oidcerrors.Code(err))
		})
	}
}

func TestGuard_LoadStoreFailure(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t)
	guard := NewGuard(failingStore{}, f.codec, apierrors.NewWriter(nil, false))

	_, err := guard.Load(f.request(t, RootPath, f.sessID))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, oidcerrors.Code(err))
}

func TestGuard_Middleware(t *testing.T) {
	t.Parallel()

	f := newGuardFixture(t)

	var seen *State
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := MustState(r)
		require.NoError(t, err)
		seen = st
		w.WriteHeader(http.StatusNoContent)
	})
	h := f.guard.Middleware(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, f.request(t, RootURL(f.sessID), f.sessID))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, f.sessID, seen.Session.UUID)

	seen = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, f.request(t, RootURL(f.sessID), ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session expired")
	assert.Nil(t, seen)
}

func TestMustState_WithoutGuard(t *testing.T) {
	t.Parallel()

	_, err := MustState(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, oidcerrors.IsType(err, oidcerrors.ErrSessionExpired))
}
