// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"fmt"
	"slices"

	"github.com/tryextra/extra-oidc/pkg/directory"
)

// Account is an end-user known to the directory service.
type Account struct {
	ID   string
	user *directory.User
}

// Accounts loads accounts by id.
type Accounts struct {
	users directory.Users
}

// NewAccounts creates an account finder over the directory users.
func NewAccounts(users directory.Users) *Accounts {
	return &Accounts{users: users}
}

// FindAccount loads the account id.
func (a *Accounts) FindAccount(ctx context.Context, id string) (*Account, error) {
	u, err := a.users.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", id, err)
	}
	return &Account{ID: id, user: u}, nil
}

// Claims returns the claims released for the granted scopes. sub is always present.
func (a *Account) Claims(scopes []string) map[string]interface{} {
	claims := map[string]interface{}{"sub": a.ID}
	u := a.user
	if u == nil {
		return claims
	}

	if slices.Contains(scopes, ScopeOpenID) && u.IntraCode != "" {
		claims["unique_name"] = u.IntraCode
	}
	if slices.Contains(scopes, ScopeEmail) && u.Email != "" {
		claims["email"] = u.Email
	}
	if slices.Contains(scopes, ScopeProfile) {
		setNonEmpty(claims, "name", u.DisplayName())
		setNonEmpty(claims, "given_name", u.FirstName)
		setNonEmpty(claims, "family_name", u.LastName)
		setNonEmpty(claims, "picture", u.Picture)
		if !u.UpdatedAt.IsZero() {
			claims["updated_at"] = u.UpdatedAt.Unix()
		}
	}
	return claims
}

func setNonEmpty(claims map[string]interface{}, key, value string) {
	if value != "" {
		claims[key] = value
	}
}
