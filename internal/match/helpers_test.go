// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gachafight/arena/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.File{
		DefaultCharacter: "fighter",
		Characters: []catalog.CharacterDefinition{
			{
				ID: "fighter", Name: "Fighter", HP: 100, CEMax: 50, CERegen: 10,
				M1Damage: 30, M1CEDamage: 45, M1CECost: 5,
				Abilities: []catalog.AbilityDefinition{
					{Name: "Burst", Effect: "impact", CECost: 20, Damage: 40, CEDamage: 60},
				},
			},
			{
				ID: "brute", Name: "Brute", HP: 200, CEMax: 20,
				M1Damage: 31, M1CEDamage: 50,
			},
		},
	})
	require.NoError(t, err)
	return c
}

func entry(character string) QueueEntry {
	id := NewID()
	return QueueEntry{
		ConnID:      id,
		IdentityID:  "user-" + id.String(),
		DisplayName: "player",
		CharacterID: character,
	}
}

// newTestState returns a state with a fighter on side A and character on side B.
func newTestState(t *testing.T, character string) (*State, *catalog.Catalog) {
	t.Helper()
	defs := testCatalog(t)
	s := newSession(NewID(), time.Now(), defs, entry("fighter"), entry(character))
	return &s.state, defs
}
