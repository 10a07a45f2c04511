// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gachafight/arena/pkg/errutil"
)

func TestSQLiteProfileStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	profileStoreContract(t, s)
}

func TestOpenSQLite_ReopensMigratedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")

	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ")
	errutil.AssertErrorCode(t, err, "STORE_CONNECT_FAILED")
}
