// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip sets a cookie with codec and returns a request carrying it.
func roundTrip(t *testing.T, codec *CookieCodec, uuid string) (*http.Request, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	codec.Set(rec, uuid, time.Now().Add(time.Hour))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/interaction/", nil)
	req.AddCookie(cookies[0])
	return req, cookies[0]
}

func TestNewCookieCodec(t *testing.T) {
	t.Parallel()

	_, err := NewCookieCodec("", nil, false)
	require.Error(t, err)

	codec, err := NewCookieCodec("", []string{"k1"}, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultCookieName, codec.Name())
}

func TestCookieCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := NewCookieCodec("", []string{"k1"}, true)
	require.NoError(t, err)

	req, ck := roundTrip(t, codec, "abc")
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteNoneMode, ck.SameSite)
	assert.Equal(t, "/", ck.Path)

	uuid, ok := codec.Read(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", uuid)
}

func TestCookieCodec_InsecureUsesLax(t *testing.T) {
	t.Parallel()

	codec, err := NewCookieCodec("", []string{"k1"}, false)
	require.NoError(t, err)

	_, ck := roundTrip(t, codec, "abc")
	assert.False(t, ck.Secure)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
}

func TestCookieCodec_KeyRotation(t *testing.T) {
	t.Parallel()

	old, err := NewCookieCodec("", []string{"old"}, false)
	require.NoError(t, err)
	rotated, err := NewCookieCodec("", []string{"new", "old"}, false)
	require.NoError(t, err)
	dropped, err := NewCookieCodec("", []string{"new"}, false)
	require.NoError(t, err)

	req, _ := roundTrip(t, old, "abc")

	uuid, ok := rotated.Read(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", uuid)

	_, ok = dropped.Read(req)
	assert.False(t, ok)
}

func TestCookieCodec_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	codec, err := NewCookieCodec("", []string{"k1"}, false)
	require.NoError(t, err)

	_, valid := roundTrip(t, codec, "abc")

	tests := []struct {
		name  string
		value string
	}{
		{"unsigned", "abc"},
		{"tampered uuid", "abd" + valid.Value[3:]},
		{"bad signature encoding", "abc.zz"},
		{"empty uuid", valid.Value[3:]},
		{"wrong signature", "abc." + sign([]byte("other"), "abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tt.value})
			_, ok := codec.Read(req)
			assert.False(t, ok)
		})
	}

	_, ok := codec.Read(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok, "missing cookie")
}

func TestCookieCodec_Clear(t *testing.T) {
	t.Parallel()

	codec, err := NewCookieCodec("sid", []string{"k1"}, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	codec.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
