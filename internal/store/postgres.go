// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/gachafight/arena/internal/auth"
)

// poolIface is the part of *pgxpool.Pool the repositories use.
// pgxmock.PgxPoolIface satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresProfileStore implements ProfileStore using PostgreSQL.
type PostgresProfileStore struct {
	pool  poolIface
	close func()
}

// NewPostgresProfileStore wraps an existing pool.
func NewPostgresProfileStore(pool poolIface) *PostgresProfileStore {
	return &PostgresProfileStore{pool: pool}
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresProfileStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", "postgres").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", "postgres").Wrap(err)
	}
	return &PostgresProfileStore{pool: pool, close: pool.Close}, nil
}

// Close closes the pool if this store opened it.
func (s *PostgresProfileStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// GetProfile loads a profile by id.
func (s *PostgresProfileStore) GetProfile(ctx context.Context, id string) (*auth.Profile, error) {
	var p auth.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, selected_character, owned_characters, kills, spins
		FROM profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Username, &p.SelectedCharacter, &p.OwnedCharacters, &p.Kills, &p.Spins)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, profileNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").With("identity_id", id).Wrap(err)
	}
	return &p, nil
}

// CreditKillAndSpin adds one kill and one spin in a single statement.
func (s *PostgresProfileStore) CreditKillAndSpin(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles
		SET kills = kills + 1, spins = spins + 1, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return oops.Code("PROFILE_CREDIT_FAILED").With("identity_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return profileNotFound(id)
	}
	return nil
}

// UpsertProfile creates a profile or replaces its identity fields. Kill
// and spin counters of an existing profile are left alone.
func (s *PostgresProfileStore) UpsertProfile(ctx context.Context, p *auth.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	owned := p.OwnedCharacters
	if owned == nil {
		owned = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, username, selected_character, owned_characters, kills, spins)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			selected_character = EXCLUDED.selected_character,
			owned_characters = EXCLUDED.owned_characters,
			updated_at = now()
	`, p.ID, p.Username, p.SelectedCharacter, owned, p.Kills, p.Spins)
	if err != nil {
		return oops.Code("PROFILE_UPSERT_FAILED").With("identity_id", p.ID).Wrap(err)
	}
	return nil
}

// IsTransient implements reward.TransientClassifier.
func (s *PostgresProfileStore) IsTransient(err error) bool { return IsTransient(err) }
