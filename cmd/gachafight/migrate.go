// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gachafight/arena/internal/store"
)

// migrateConfig holds flags shared by the migrate subcommands.
type migrateConfig struct {
	databaseURL string
	sqlitePath  string
	all         bool
}

type migrateEnv struct {
	DatabaseURL string `env:"DATABASE_URL"`
}

// migrator is the subset of store.Migrator the commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

var newMigrator = func(url string) (migrator, error) {
	return store.NewMigrator(url)
}

func newMigrateCmd() *cobra.Command {
	cfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the profile database schema",
		Long: `Apply, roll back, or inspect profile schema migrations. The target is
--database-url (or DATABASE_URL) for PostgreSQL, or --sqlite-path for the
embedded SQLite store.`,
	}
	cmd.PersistentFlags().StringVar(&cfg.databaseURL, "database-url", "", "postgres connection string (default: DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&cfg.sqlitePath, "sqlite-path", "", "sqlite database path")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cfg, func(m migrator) error {
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					cmd.Println("No pending migrations")
					return nil
				}
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Printf("Applied %d migration(s)\n", len(pending))
				return nil
			})
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration (or all with --all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cfg, func(m migrator) error {
				if cfg.all {
					if err := m.Down(); err != nil {
						return err
					}
					cmd.Println("Rolled back all migrations")
					return nil
				}
				if err := m.Steps(-1); err != nil {
					return err
				}
				cmd.Println("Rolled back one migration")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&cfg.all, "all", false, "roll back every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cfg, func(m migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				cmd.Println(formatMigrationVersion(v, dirty, pending))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (dirty recovery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cfg, func(m migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cfg *migrateConfig, fn func(migrator) error) error {
	url, err := migrationURL(cfg, nil)
	if err != nil {
		return err
	}
	m, err := newMigrator(url)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

// migrationURL picks the migration target: --sqlite-path, then
// --database-url, then DATABASE_URL.
func migrationURL(cfg *migrateConfig, environ map[string]string) (string, error) {
	if cfg.sqlitePath != "" {
		return "sqlite://" + cfg.sqlitePath, nil
	}
	if cfg.databaseURL != "" {
		return cfg.databaseURL, nil
	}
	var e migrateEnv
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return "", oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}
	if e.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("--database-url, --sqlite-path, or DATABASE_URL is required")
	}
	return e.DatabaseURL, nil
}

func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrapf(err, "version must be an integer")
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be non-negative")
	}
	return v, nil
}

func formatMigrationVersion(v uint, dirty bool, pending []uint) string {
	var b strings.Builder
	if v == 0 {
		b.WriteString("No migrations applied")
	} else {
		b.WriteString("Schema version " + strconv.FormatUint(uint64(v), 10))
		if name, err := store.MigrationName(store.DialectPostgres, v); err == nil && name != "" {
			b.WriteString(" (" + name + ")")
		}
	}
	if dirty {
		b.WriteString(" [dirty: run 'gachafight migrate force' after fixing]")
	}
	b.WriteString(", " + strconv.Itoa(len(pending)) + " pending")
	return b.String()
}
