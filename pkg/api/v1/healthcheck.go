// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package v1 serves the operational endpoints of the server.
package v1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tryextra/extra-oidc/pkg/logger"
)

const probeTimeout = 2 * time.Second

// Check is a dependency probed by the health endpoint.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthcheckRouter sets up healthcheck route.
func HealthcheckRouter(checks ...Check) http.Handler {
	routes := &healthcheckRoutes{checks: checks}
	r := chi.NewRouter()
	r.Get("/", routes.getHealthcheck)
	return r
}

type healthcheckRoutes struct {
	checks []Check
}

// getHealthcheck answers 204 when every dependency responds and 503 otherwise.
func (h *healthcheckRoutes) getHealthcheck(w http.ResponseWriter, r *http.Request) {
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			logger.Warnw("health check failed", "check", c.Name, "error", err)
			http.Error(w, fmt.Sprintf("%s unavailable", c.Name), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
