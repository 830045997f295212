// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the extra-oidc command-line application.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tryextra/extra-oidc/pkg/config"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

// NewRootCmd creates a new root command for the extra-oidc CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "extra-oidc",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "extra-oidc is the OpenID Connect provider of tryextra.net",
		Long: `extra-oidc issues OAuth 2.0 and OpenID Connect tokens for the clients registered
in the directory service. End-users sign in through the upstream Azure AD tenant.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := viper.BindPFlag("debug", cmd.Flags().Lookup("debug")); err != nil {
				return fmt.Errorf("failed to bind debug flag: %w", err)
			}
			// Re-initialize so the debug flag takes effect.
			logger.Initialize()
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig reads the file named by --config, overlaid by the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(viper.New(), path)
}
