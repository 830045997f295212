// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetHealthcheck(t *testing.T) {
	t.Parallel()

	ok := Check{Name: "redis", Probe: func(context.Context) error { return nil }}
	down := Check{Name: "directory", Probe: func(context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name       string
		checks     []Check
		wantStatus int
	}{
		{"no checks", nil, http.StatusNoContent},
		{"all healthy", []Check{ok}, http.StatusNoContent},
		{"one failing", []Check{ok, down}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := httptest.NewRecorder()
			(&healthcheckRoutes{checks: tt.checks}).getHealthcheck(resp, nil)
			require.Equal(t, tt.wantStatus, resp.Code)
			if tt.wantStatus == http.StatusNoContent {
				require.Empty(t, resp.Body)
			} else {
				require.Contains(t, resp.Body.String(), "directory unavailable")
			}
		})
	}
}

func TestHealthcheckRouter(t *testing.T) {
	t.Parallel()

	resp := httptest.NewRecorder()
	HealthcheckRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, resp.Code)
}
