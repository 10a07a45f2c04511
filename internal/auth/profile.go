// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package auth

import "context"

// DefaultCharacterID is played when a profile has no usable character.
const DefaultCharacterID = "yuki"

// Profile is the persistent player record the match server reads.
type Profile struct {
	ID                string
	Username          string
	SelectedCharacter string
	OwnedCharacters   []string
	Kills             int
	Spins             int
}

// ProfileRepository loads profiles by id. Implementations return an error
// wrapping ErrNotFound for unknown ids.
type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
}

// Identity is the verified player behind a connection.
type Identity struct {
	ID          string
	DisplayName string
	CharacterID string
}

// CharacterFor picks the character a profile plays with.
func CharacterFor(p *Profile, fallback string) string {
	if p.SelectedCharacter != "" {
		return p.SelectedCharacter
	}
	for _, c := range p.OwnedCharacters {
		if c != "" {
			return c
		}
	}
	return fallback
}
