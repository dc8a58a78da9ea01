// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Passkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passkeep",
		Short: "Passkeep - credential management service",
		Long: `Passkeep is a credential management service providing registration,
authentication, and email-based password reset over a PostgreSQL store.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
