// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package xdg resolves XDG Base Directory paths for gachafight.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "gachafight"

// ConfigDir returns $XDG_CONFIG_HOME/gachafight, falling back to
// ~/.config/gachafight.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/gachafight, falling back to
// ~/.local/share/gachafight.
func DataDir() (string, error) {
	return resolve("XDG_DATA_HOME", ".local", "share")
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// SQLitePath returns the default embedded profile database path.
func SQLitePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.db"), nil
}

// CertsDir returns the directory generated TLS certificates are kept in.
func CertsDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "certs"), nil
}

func resolve(envVar string, fallback ...string) (string, error) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_NO_HOME").With("env", envVar).Errorf("neither %s nor HOME is set", envVar)
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...), nil
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
