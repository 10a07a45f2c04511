// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/gachafight/arena/internal/auth"
)

// SQLiteProfileStore implements ProfileStore on a local SQLite file.
type SQLiteProfileStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the embedded migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteProfileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", "sqlite").Errorf("sqlite path is required")
	}
	clean := filepath.Clean(path)

	m, err := NewMigrator("sqlite://" + clean)
	if err != nil {
		return nil, err
	}
	upErr := m.Up()
	closeErr := m.Close()
	if upErr != nil {
		return nil, upErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	db, err := sql.Open("sqlite", clean+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", "sqlite").With("path", clean).Wrap(err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", "sqlite").With("path", clean).Wrap(err)
	}
	return &SQLiteProfileStore{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteProfileStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetProfile loads a profile by id.
func (s *SQLiteProfileStore) GetProfile(ctx context.Context, id string) (*auth.Profile, error) {
	var (
		p     auth.Profile
		owned string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, selected_character, owned_characters, kills, spins
		 FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Username, &p.SelectedCharacter, &owned, &p.Kills, &p.Spins)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profileNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").With("identity_id", id).Wrap(err)
	}
	if err := json.Unmarshal([]byte(owned), &p.OwnedCharacters); err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").With("identity_id", id).Wrapf(err, "corrupt owned_characters")
	}
	return &p, nil
}

// CreditKillAndSpin adds one kill and one spin in a single statement.
func (s *SQLiteProfileStore) CreditKillAndSpin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET kills = kills + 1, spins = spins + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return oops.Code("PROFILE_CREDIT_FAILED").With("identity_id", id).Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("PROFILE_CREDIT_FAILED").With("identity_id", id).Wrap(err)
	}
	if n == 0 {
		return profileNotFound(id)
	}
	return nil
}

// UpsertProfile creates a profile or replaces its identity fields.
func (s *SQLiteProfileStore) UpsertProfile(ctx context.Context, p *auth.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	owned := p.OwnedCharacters
	if owned == nil {
		owned = []string{}
	}
	ownedJSON, err := json.Marshal(owned)
	if err != nil {
		return oops.Code("PROFILE_UPSERT_FAILED").With("identity_id", p.ID).Wrap(err)
	}
	now := time.Now().UTC().UnixMilli()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, username, selected_character, owned_characters, kills, spins, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   username = excluded.username,
		   selected_character = excluded.selected_character,
		   owned_characters = excluded.owned_characters,
		   updated_at = excluded.updated_at`,
		p.ID, p.Username, p.SelectedCharacter, string(ownedJSON), p.Kills, p.Spins, now, now)
	if err != nil {
		return oops.Code("PROFILE_UPSERT_FAILED").With("identity_id", p.ID).Wrap(err)
	}
	return nil
}

// IsTransient implements reward.TransientClassifier.
func (s *SQLiteProfileStore) IsTransient(err error) bool { return IsTransient(err) }
