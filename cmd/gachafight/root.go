// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package main

import "github.com/spf13/cobra"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the gachafight CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gachafight",
		Short: "GachaFight - authoritative 1v1 arena server",
		Long: `gachafight runs the real-time match server for GachaFight: it pairs
players, resolves combat authoritatively, and credits kills to profiles.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/gachafight/config.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCertsCmd())

	return cmd
}
