// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/tryextra/extra-oidc/pkg/directory"
	oidcerrors "github.com/tryextra/extra-oidc/pkg/errors"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

// Reason classifies a rejected identity.
type Reason string

// Rejection reasons.
const (
	ReasonInvalidAccount   Reason = "invalid_account"
	ReasonNotRegistered    Reason = "not_registered"
	ReasonAccountSuspended Reason = "account_suspended"
)

// Messages shown on the failed screen.
const (
	MessageInvalidAccount = "Invalid azuread account."
	MessageNotRegistered  = "Your account is not yet registered on the intranet."
	MessageSuspended      = "Account suspended."
)

// Profile is the identity asserted by the upstream provider.
type Profile struct {
	// ObjectID is the immutable upstream object id (oid).
	ObjectID string

	// PrincipalName is the user principal name (upn) used to find the directory account.
	PrincipalName string

	Name  string
	Email string
}

// Rejection is a policy refusal of an otherwise valid upstream identity.
type Rejection struct {
	Reason  Reason
	Message string
}

// Err returns the rejection as an exposed 403 carrying Message.
func (r *Rejection) Err() error {
	return oidcerrors.NewIdentityRejectedError(r.Message)
}

// Policy maps upstream profiles to directory accounts.
type Policy struct {
	users directory.Users
}

// NewPolicy creates a Policy reading the directory users collection.
func NewPolicy(users directory.Users) *Policy {
	return &Policy{users: users}
}

// Resolve returns the account of p, or a Rejection when policy refuses it.
// A profile without object id or principal name is rejected before the
// directory is consulted.
func (pol *Policy) Resolve(ctx context.Context, p *Profile) (*directory.User, *Rejection, error) {
	if p == nil || p.ObjectID == "" || p.PrincipalName == "" {
		return nil, &Rejection{Reason: ReasonInvalidAccount, Message: MessageInvalidAccount}, nil
	}

	page, err := pol.users.FindByIntraCode(ctx, p.PrincipalName, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up account %s: %w", p.PrincipalName, err)
	}
	if page == nil || page.Total == 0 || len(page.Data) == 0 {
		logger.Debugw("upstream identity has no directory account", "upn", p.PrincipalName)
		return nil, &Rejection{Reason: ReasonNotRegistered, Message: MessageNotRegistered}, nil
	}

	user := page.Data[0]
	if user.Suspended {
		return nil, &Rejection{
			Reason:  ReasonAccountSuspended,
			Message: strings.TrimSpace(MessageSuspended + " " + user.SuspendedReason),
		}, nil
	}
	return &user, nil, nil
}
