// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the extra-oidc server.
package main

import (
	"os"

	"github.com/tryextra/extra-oidc/cmd/extra-oidc/app"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
