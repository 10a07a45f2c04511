// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	arenatls "github.com/gachafight/arena/internal/tls"
	"github.com/gachafight/arena/internal/xdg"
)

type certsOptions struct {
	dir   string
	hosts []string
	force bool
}

func newCertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Manage the certificates used for wss://",
	}

	opts := &certsOptions{}
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a local CA and an arena server certificate",
		Long: `Generate a local CA and a server certificate signed by it. An existing
CA in the directory is reused so clients that already trust it keep
working. Pass the directory to serve with --tls-dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := generateCerts(opts)
			if err != nil {
				return err
			}
			cmd.Printf("certificates written to %s\n", dir)
			cmd.Printf("  server: %s\n", filepath.Join(dir, arenatls.ServerCertFile))
			cmd.Printf("  CA:     %s\n", filepath.Join(dir, arenatls.CACertFile))
			return nil
		},
	}
	generate.Flags().StringVar(&opts.dir, "dir", "", "output directory (default: XDG_CONFIG_HOME/gachafight/certs)")
	generate.Flags().StringSliceVar(&opts.hosts, "host", nil, "DNS name or IP the certificate covers (repeatable, default: localhost,127.0.0.1)")
	generate.Flags().BoolVar(&opts.force, "force", false, "replace an existing CA")
	cmd.AddCommand(generate)

	return cmd
}

func generateCerts(opts *certsOptions) (string, error) {
	dir := opts.dir
	if dir == "" {
		var err error
		if dir, err = xdg.CertsDir(); err != nil {
			return "", err
		}
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return "", err
	}

	var ca *arenatls.CA
	if _, err := os.Stat(filepath.Join(dir, arenatls.CACertFile)); err == nil && !opts.force {
		if ca, err = arenatls.LoadCA(dir); err != nil {
			return "", oops.With("dir", dir).Wrapf(err, "existing CA cannot be loaded (use --force to replace it)")
		}
	} else {
		if ca, err = arenatls.GenerateCA(); err != nil {
			return "", err
		}
	}

	server, err := arenatls.GenerateServerCert(ca, opts.hosts)
	if err != nil {
		return "", err
	}
	if err := arenatls.Save(dir, ca, server); err != nil {
		return "", err
	}
	return dir, nil
}
