// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gachafight/arena/pkg/errutil"
)

func TestDirs(t *testing.T) {
	tests := []struct {
		name   string
		fn     func() (string, error)
		envVar string
		envVal string
		home   string
		want   string
	}{
		{"config from env", ConfigDir, "XDG_CONFIG_HOME", "/custom/config", "/home/u", "/custom/config/gachafight"},
		{"config default", ConfigDir, "XDG_CONFIG_HOME", "", "/home/u", "/home/u/.config/gachafight"},
		{"data from env", DataDir, "XDG_DATA_HOME", "/custom/data", "/home/u", "/custom/data/gachafight"},
		{"data default", DataDir, "XDG_DATA_HOME", "", "/home/u", "/home/u/.local/share/gachafight"},
		{"config file", ConfigFile, "XDG_CONFIG_HOME", "/c", "", "/c/gachafight/config.yaml"},
		{"certs dir", CertsDir, "XDG_CONFIG_HOME", "/c", "", "/c/gachafight/certs"},
		{"sqlite path", SQLitePath, "XDG_DATA_HOME", "", "/home/u", "/home/u/.local/share/gachafight/profiles.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.envVal)
			t.Setenv("HOME", tt.home)

			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirs_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	_, err := ConfigDir()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "XDG_NO_HOME")

	_, err = ConfigFile()
	assert.Error(t, err)
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	err = EnsureDir(filepath.Join(blocker, "sub"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "XDG_MKDIR_FAILED")
}
