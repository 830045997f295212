// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package interaction_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tryextra/extra-oidc/pkg/clients"
	"github.com/tryextra/extra-oidc/pkg/directory"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
	"github.com/tryextra/extra-oidc/pkg/interaction"
	"github.com/tryextra/extra-oidc/pkg/interaction/mocks"
)

func newSession(accountID string, params url.Values) *interaction.Session {
	if params.Get("client_id") == "" {
		params.Set("client_id", "c1")
	}
	return &interaction.Session{
		UUID:        "3c9e1f6e-8d8a-4c44-9d0e-3f7c2e0f0a11",
		AccountID:   accountID,
		ClientID:    params.Get("client_id"),
		Params:      params,
		RequestedAt: time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func record(trusted bool) *clients.Record {
	return &clients.Record{ID: "c1", Name: "Intranet", Trusted: trusted}
}

func TestEngine_LoginAlwaysRequiredWithoutAccount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		trusted   bool
		params    url.Values
		wantTitle string
		want      interaction.Outcome
	}{
		{
			name:      "no prompts",
			params:    url.Values{"scope": {"openid"}},
			wantTitle: interaction.TitleFirstLogin,
			want:      interaction.OutcomeLogin,
		},
		{
			name:      "trusted client with consent prompt",
			trusted:   true,
			params:    url.Values{"scope": {"openid"}, "prompt": {"consent"}},
			wantTitle: interaction.TitleFirstLogin,
			want:      interaction.OutcomeLogin,
		},
		{
			name:      "trusted client with bypass marker",
			trusted:   true,
			params:    url.Values{"bypass_signin": {"1"}},
			wantTitle: interaction.TitleFirstLogin,
			want:      interaction.OutcomeBypassSignin,
		},
		{
			name:      "trusted client with bare bypass marker",
			trusted:   true,
			params:    url.Values{"bypass_signin": {""}},
			wantTitle: interaction.TitleFirstLogin,
			want:      interaction.OutcomeBypassSignin,
		},
		{
			name:      "untrusted client cannot bypass",
			params:    url.Values{"bypass_signin": {"1"}},
			wantTitle: interaction.TitleFirstLogin,
			want:      interaction.OutcomeLogin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			resolver := mocks.NewMockClientResolver(ctrl)
			resolver.EXPECT().Resolve(gomock.Any(), "c1").Return(record(tt.trusted), nil)
			// No ledger access is expected.
			grants := mocks.NewMockGrantFinder(ctrl)

			d, err := interaction.NewEngine(resolver, grants).Decide(context.Background(), newSession("", tt.params))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, tt.wantTitle, d.Title)
			assert.Equal(t, interaction.PromptLogin, d.Outcome.Prompt())
		})
	}
}

func TestEngine_ReLogin(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockClientResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "c1").Return(record(true), nil).Times(2)
	engine := interaction.NewEngine(resolver, mocks.NewMockGrantFinder(ctrl))

	sess := newSession("u1", url.Values{"prompt": {"login consent"}})

	d, err := engine.Decide(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, interaction.OutcomeLogin, d.Outcome)
	assert.Equal(t, interaction.TitleReLogin, d.Title)

	// Once login is done in this interaction it is not asked again.
	sess.MarkDone(interaction.PromptLogin)
	d, err = engine.Decide(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, interaction.OutcomeGranted, d.Outcome)
}

func TestEngine_TrustedClientSkipsLedger(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockClientResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "c1").Return(record(true), nil)
	grants := mocks.NewMockGrantFinder(ctrl)
	grants.EXPECT().Find(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	d, err := interaction.NewEngine(resolver, grants).
		Decide(context.Background(), newSession("u1", url.Values{"scope": {"openid email"}, "prompt": {"consent"}}))
	require.NoError(t, err)
	assert.Equal(t, interaction.OutcomeGranted, d.Outcome)
	assert.Equal(t, interaction.PromptNone, d.Outcome.Prompt())
}

func TestEngine_Consent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		scope       string
		prompt      string
		grant       *directory.Authorization
		want        interaction.Outcome
		wantScopes  []string
		wantGranted []string
		wantReduced bool
	}{
		{
			name:       "no grant shows every requested scope",
			scope:      "openid email",
			want:       interaction.OutcomeConsent,
			wantScopes: []string{"openid", "email"},
		},
		{
			name:        "new scope shows a reduced screen",
			scope:       "a b c",
			grant:       &directory.Authorization{ID: "g1", Scopes: []string{"a", "b"}},
			want:        interaction.OutcomeConsent,
			wantScopes:  []string{"c"},
			wantGranted: []string{"a", "b"},
			wantReduced: true,
		},
		{
			name:  "covered scopes finish silently",
			scope: "a b",
			grant: &directory.Authorization{ID: "g1", Scopes: []string{"a", "b"}},
			want:  interaction.OutcomeGranted,
		},
		{
			name:        "explicit consent prompt always shows the screen",
			scope:       "a b",
			prompt:      "consent",
			grant:       &directory.Authorization{ID: "g1", Scopes: []string{"a", "b"}},
			want:        interaction.OutcomeConsent,
			wantGranted: []string{"a", "b"},
			wantReduced: true,
		},
		{
			name:  "empty scope set is covered by any grant",
			grant: &directory.Authorization{ID: "g1", Scopes: []string{"openid"}},
			want:  interaction.OutcomeGranted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params := url.Values{}
			if tt.scope != "" {
				params.Set("scope", tt.scope)
			}
			if tt.prompt != "" {
				params.Set("prompt", tt.prompt)
			}

			ctrl := gomock.NewController(t)
			resolver := mocks.NewMockClientResolver(ctrl)
			resolver.EXPECT().Resolve(gomock.Any(), "c1").Return(record(false), nil)
			grants := mocks.NewMockGrantFinder(ctrl)
			grants.EXPECT().Find(gomock.Any(), "u1", "c1").Return(tt.grant, nil)

			d, err := interaction.NewEngine(resolver, grants).Decide(context.Background(), newSession("u1", params))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Outcome)
			if tt.want != interaction.OutcomeConsent {
				return
			}
			assert.Equal(t, tt.wantScopes, emptyToNil(d.Scopes))
			assert.Equal(t, tt.wantGranted, d.GrantedScopes)
			assert.Equal(t, tt.wantReduced, d.Reduced)
			if tt.wantReduced {
				assert.Equal(t, interaction.HeadlineReducedConsent, d.Headline())
			} else {
				assert.Equal(t, interaction.HeadlineFullConsent, d.Headline())
			}
		})
	}
}

func emptyToNil(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestEngine_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		resolveErr error
		findErr    error
		wantType   string
	}{
		{name: "unknown client", resolveErr: clients.ErrNotFound, wantType: oidcerrors.ErrUnknownClient},
		{name: "directory down while resolving", resolveErr: errors.New("dial tcp"), wantType: oidcerrors.ErrUpstreamFailure},
		{name: "directory down while reading grants", findErr: context.DeadlineExceeded, wantType: oidcerrors.ErrUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			resolver := mocks.NewMockClientResolver(ctrl)
			grants := mocks.NewMockGrantFinder(ctrl)
			if tt.resolveErr != nil {
				resolver.EXPECT().Resolve(gomock.Any(), "c1").Return(nil, tt.resolveErr)
			} else {
				resolver.EXPECT().Resolve(gomock.Any(), "c1").Return(record(false), nil)
				grants.EXPECT().Find(gomock.Any(), "u1", "c1").Return(nil, tt.findErr)
			}

			_, err := interaction.NewEngine(resolver, grants).
				Decide(context.Background(), newSession("u1", url.Values{"scope": {"openid"}}))
			require.Error(t, err)
			assert.True(t, oidcerrors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestEngine_DecideIsRepeatable(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockClientResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "c1").Return(record(false), nil).Times(2)
	grants := mocks.NewMockGrantFinder(ctrl)
	grants.EXPECT().Find(gomock.Any(), "u1", "c1").
		Return(&directory.Authorization{Scopes: []string{"openid"}}, nil).Times(2)
	observer := mocks.NewMockPromptObserver(ctrl)
	observer.EXPECT().ObservePrompt(gomock.Any(), interaction.PromptConsent, "c1").Times(2)

	engine := interaction.NewEngine(resolver, grants, interaction.WithPromptObserver(observer))
	sess := newSession("u1", url.Values{"scope": {"openid email"}})

	first, err := engine.Decide(context.Background(), sess)
	require.NoError(t, err)
	second, err := engine.Decide(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Nil(t, sess.Meta, "deciding does not touch the session")
}
