// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tryextra/extra-oidc/pkg/directory"
	"github.com/tryextra/extra-oidc/pkg/directory/mocks"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
)

func TestPolicy_ResolveRejectsIncompleteProfileWithoutLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile *Profile
	}{
		{"nil profile", nil},
		{"missing oid", &Profile{PrincipalName: "jdoe@tryextra.net"}},
		{"missing upn", &Profile{ObjectID: "oid-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// No expectations: any directory call fails the test.
			ctrl := gomock.NewController(t)
			pol := NewPolicy(mocks.NewMockUsers(ctrl))

			user, rejection, err := pol.Resolve(context.Background(), tt.profile)
			require.NoError(t, err)
			assert.Nil(t, user)
			require.NotNil(t, rejection)
			assert.Equal(t, ReasonInvalidAccount, rejection.Reason)
			assert.Equal(t, "Invalid azuread account.", rejection.Message)
		})
	}
}

func TestPolicy_Resolve(t *testing.T) {
	t.Parallel()

	profile := &Profile{ObjectID: "oid-1", PrincipalName: "jdoe@tryextra.net"}

	tests := []struct {
		name        string
		page        *directory.Page[directory.User]
		wantUser    string
		wantReason  Reason
		wantMessage string
	}{
		{
			name:     "registered account",
			page:     &directory.Page[directory.User]{Total: 1, Data: []directory.User{{ID: "u1", IntraCode: "jdoe@tryextra.net"}}},
			wantUser: "u1",
		},
		{
			name:        "no account",
			page:        &directory.Page[directory.User]{Total: 0},
			wantReason:  ReasonNotRegistered,
			wantMessage: "Your account is not yet registered on the intranet.",
		},
		{
			name: "suspended with reason",
			page: &directory.Page[directory.User]{Total: 1, Data: []directory.User{
				{ID: "u1", Suspended: true, SuspendedReason: "Contract ended."},
			}},
			wantReason:  ReasonAccountSuspended,
			wantMessage: "Account suspended. Contract ended.",
		},
		{
			name: "suspended without reason",
			page: &directory.Page[directory.User]{Total: 1, Data: []directory.User{
				{ID: "u1", Suspended: true},
			}},
			wantReason:  ReasonAccountSuspended,
			wantMessage: "Account suspended.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			users := mocks.NewMockUsers(ctrl)
			users.EXPECT().FindByIntraCode(gomock.Any(), "jdoe@tryextra.net", 1).Return(tt.page, nil)

			user, rejection, err := NewPolicy(users).Resolve(context.Background(), profile)
			require.NoError(t, err)

			if tt.wantUser != "" {
				require.NotNil(t, user)
				assert.Equal(t, tt.wantUser, user.ID)
				assert.Nil(t, rejection)
				return
			}
			assert.Nil(t, user)
			require.NotNil(t, rejection)
			assert.Equal(t, tt.wantReason, rejection.Reason)
			assert.Equal(t, tt.wantMessage, rejection.Message)
			assert.Equal(t, tt.wantMessage, oidcerrors.Message(rejection.Err()))
			assert.True(t, oidcerrors.IsType(rejection.Err(), oidcerrors.ErrIdentityRejected))
		})
	}
}

func TestPolicy_ResolveDirectoryFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	users := mocks.NewMockUsers(ctrl)
	boom := errors.New("connection reset")
	users.EXPECT().FindByIntraCode(gomock.Any(), gomock.Any(), 1).Return(nil, boom)

	_, rejection, err := NewPolicy(users).Resolve(context.Background(), &Profile{ObjectID: "o", PrincipalName: "p"})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, rejection)
}
