// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error with cause",
			err:  NewUpstreamFailureError("directory unavailable", errors.New("dial tcp: refused")),
			want: "upstream_failure: directory unavailable: dial tcp: refused",
		},
		{
			name: "error without cause",
			err:  NewSessionExpiredError(),
			want: "session_expired: Session expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session expired", NewSessionExpiredError(), http.StatusUnauthorized},
		{"unknown client", NewUnknownClientError("c1"), http.StatusBadRequest},
		{"wrapped upstream", fmt.Errorf("resolve: %w", NewUpstreamFailureError("x", nil)), http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestIsExposed(t *testing.T) {
	t.Parallel()

	assert.True(t, IsExposed(NewSessionExpiredError()))
	assert.True(t, IsExposed(fmt.Errorf("wrapped: %w", NewIdentityRejectedError("not registered"))))
	assert.False(t, IsExposed(NewUpstreamFailureError("directory", nil)))
	assert.False(t, IsExposed(errors.New("plain")))
}

func TestIsType(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("guard: %w", NewSessionExpiredError())
	assert.True(t, IsType(err, ErrSessionExpired))
	assert.False(t, IsType(err, ErrUnknownClient))
	assert.Equal(t, "Session expired", Message(err))
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	err := NewInternalError("test message", cause)

	assert.Same(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestTypeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrUnknownClient, TypeOf(fmt.Errorf("lookup: %w", NewUnknownClientError("c1"))))
	assert.Equal(t, ErrInternal, TypeOf(errors.New("plain")))
}
