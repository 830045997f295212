// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package directory is the client of the directory service, the external store
// of users, OAuth clients and granted authorizations.
//
// Calls are blocking, bounded by a per-request timeout and never retried:
// repeating a create or patch could duplicate side effects.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

//go:generate mockgen -destination=mocks/mock_directory.go -package=mocks -source=directory.go

// Users reads accounts.
type Users interface {
	// FindByIntraCode returns at most limit users whose principal name matches.
	FindByIntraCode(ctx context.Context, intraCode string, limit int) (*Page[User], error)

	// Get loads a user by id. Returns an error matching ErrNotFound when absent.
	Get(ctx context.Context, id string) (*User, error)
}

// Clients reads OAuth client registrations.
type Clients interface {
	// Get loads a client by id. Absent clients match ErrNotFound, malformed ids match ErrBadRequest.
	Get(ctx context.Context, id string) (*Client, error)
}

// Authorizations reads and writes granted authorizations.
type Authorizations interface {
	// Find returns the authorizations recorded for the (user, client) pair.
	Find(ctx context.Context, userID, clientID string) ([]Authorization, error)

	// Create records a new authorization.
	Create(ctx context.Context, auth *Authorization) (*Authorization, error)

	// Patch replaces the scopes of an existing authorization and stamps it with updatedAt.
	Patch(ctx context.Context, id string, scopes []string, updatedAt time.Time) (*Authorization, error)
}

// Service groups the three collections of the directory service.
type Service interface {
	Users() Users
	Clients() Clients
	Authorizations() Authorizations
}

var (
	// ErrNotFound matches any directory error with a 404 code.
	ErrNotFound = &APIError{Name: "NotFound", Code: http.StatusNotFound}

	// ErrBadRequest matches any directory error with a 400 code.
	ErrBadRequest = &APIError{Name: "BadRequest", Code: http.StatusBadRequest}
)

// APIError is the error body returned by the directory service.
type APIError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directory: %s (%d)", e.Name, e.Code)
	}
	return fmt.Sprintf("directory: %s (%d): %s", e.Name, e.Code, e.Message)
}

// Is matches API errors by code.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// IsMissing reports whether err means the record is absent or its id malformed.
func IsMissing(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadRequest)
}
