// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package views

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	return r
}

func TestRenderer_Login(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	require.NoError(t, newRenderer(t).Login(rec, LoginView{
		Title:      "Please Sign-in to continue.",
		ClientName: "Intranet",
		LoginURL:   "/interaction/azuread?request_id=abc",
	}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Please Sign-in to continue.</title>")
	assert.Contains(t, body, `href="/interaction/azuread?request_id=abc"`)
}

func TestRenderer_Consent(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	require.NoError(t, newRenderer(t).Consent(rec, ConsentView{
		Title:         "Authorize",
		ClientName:    "<Intranet>",
		Headline:      "is asking for new permissions",
		Scopes:        []string{"profile"},
		GrantedScopes: []string{"openid", "email"},
		Action:        "/interaction/consent?request_id=abc",
	}))

	body := rec.Body.String()
	assert.Contains(t, body, "&lt;Intranet&gt;", "client names are escaped")
	assert.Contains(t, body, `<li class="scope scope-new">profile</li>`)
	assert.Contains(t, body, `<li class="scope scope-granted">email</li>`)
	assert.Contains(t, body, "is asking for new permissions")
	assert.Contains(t, body, `value="consent"`)
}

func TestRenderer_SessionEndKeepsForm(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	require.NoError(t, newRenderer(t).SessionEnd(rec, SessionEndView{
		Title:       "Signing you out...",
		Form:        template.HTML(`<form id="op.logoutForm" method="post" action="/session/end/confirm"></form>`),
		RedirectURI: "https://app.example.com/?state=xyz",
	}))

	body := rec.Body.String()
	assert.Contains(t, body, `<form id="op.logoutForm"`)
	assert.Contains(t, body, "https://app.example.com/?state=xyz")
}

func TestRenderer_Frontchannel(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	require.NoError(t, newRenderer(t).Frontchannel(rec, FrontchannelView{
		Title:       "Signing you out...",
		Frames:      []template.HTML{`<iframe src="https://app.example.com/logout"></iframe>`},
		RedirectURI: "https://app.example.com/?state=xyz",
		TimeoutMS:   2500,
	}))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<div class="frames"><iframe src="https://app.example.com/logout"></iframe></div>`)
	assert.Contains(t, body, `href="https://app.example.com/?state=xyz"`)
	assert.Contains(t, body, "window.location.replace(")
	assert.Contains(t, body, "2500")
}

func TestRenderer_RenderError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		page       apierrors.Page
		contains   []string
		notContain []string
	}{
		{
			name:       "production",
			page:       apierrors.Page{Status: http.StatusBadGateway, Reason: "Bad Gateway"},
			contains:   []string{"<h1>Bad Gateway</h1>"},
			notContain: []string{"<pre>"},
		},
		{
			name:     "development",
			page:     apierrors.Page{Status: http.StatusBadRequest, Reason: "Bad Request", Message: "unknown client", Detail: "stack"},
			contains: []string{"<p>unknown client</p>", "<pre>stack</pre>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			require.NoError(t, newRenderer(t).RenderError(rec, tt.page))

			assert.Equal(t, tt.page.Status, rec.Code)
			for _, s := range tt.contains {
				assert.Contains(t, rec.Body.String(), s)
			}
			for _, s := range tt.notContain {
				assert.NotContains(t, rec.Body.String(), s)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Static().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, StaticPath+"style.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	assert.Contains(t, rec.Body.String(), ".container")
}
