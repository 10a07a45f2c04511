// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package store

import (
	"context"

	"github.com/samber/oops"

	"github.com/gachafight/arena/internal/auth"
)

// ProfileStore is implemented by every backend.
type ProfileStore interface {
	auth.ProfileRepository
	CreditKillAndSpin(ctx context.Context, identityID string) error
	UpsertProfile(ctx context.Context, p *auth.Profile) error
	IsTransient(err error) bool
	Close() error
}

func profileNotFound(id string) error {
	return oops.Code("PROFILE_NOT_FOUND").With("identity_id", id).Wrap(auth.ErrNotFound)
}

func validateProfile(p *auth.Profile) error {
	if p == nil || p.ID == "" {
		return oops.Code("PROFILE_INVALID").Errorf("profile id is required")
	}
	if p.Username == "" {
		return oops.Code("PROFILE_INVALID").With("identity_id", p.ID).Errorf("username is required")
	}
	return nil
}
