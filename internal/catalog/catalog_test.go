// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gachafight/arena/pkg/errutil"
)

const originalJSON = `{
  "characters": [
    {
      "id": "yuki",
      "name": "Yuji Itadori",
      "rarity": "Common",
      "hp": 1200,
      "ceMax": 100,
      "ceRegen": 2,
      "m1Damage": 30,
      "m1CeMod": 45,
      "dashCeCost": 5,
      "abilities": [
        {"name": "Divergent Fist", "effectType": "impact", "cooldown": 4, "ceCost": 15, "damage": 120, "ceModDamage": 180}
      ]
    },
    {
      "id": "tank",
      "name": "Tank",
      "rarity": "Rare",
      "hp": 2000,
      "ceMax": 50,
      "m1Damage": 10,
      "m1CeMod": 20,
      "portrait": "tank.png"
    }
  ]
}`

func TestDefault_LoadsEmbeddedCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, "yuki", c.DefaultID())
	assert.Equal(t, "1.0.0", c.Version())
	assert.GreaterOrEqual(t, c.Len(), 1)

	yuki, ok := c.Lookup("yuki")
	require.True(t, ok)
	assert.Equal(t, 1200, yuki.HP)
	assert.Equal(t, 100, yuki.CEMax)
	assert.Equal(t, 30, yuki.M1Damage)
	assert.Equal(t, 45, yuki.M1CEDamage)
	assert.Equal(t, DefaultM1CECost, yuki.M1CECost)
	assert.Len(t, yuki.Abilities, 4)
}

func TestParse_OriginalJSONFormat(t *testing.T) {
	c, err := Parse([]byte(originalJSON))
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "yuki", c.DefaultID(), "first character is the default when none is named")

	tank, ok := c.Lookup("tank")
	require.True(t, ok)
	assert.Equal(t, DefaultCERegen, tank.CERegen, "missing ceRegen defaults to 1")
	assert.Empty(t, tank.Abilities)
}

func TestDefinition_FallsBackToDefault(t *testing.T) {
	c, err := Parse([]byte(originalJSON))
	require.NoError(t, err)

	def := c.Definition("does-not-exist")
	assert.Equal(t, "yuki", def.ID)

	def = c.Definition("tank")
	assert.Equal(t, "tank", def.ID)
}

func TestAbility_Bounds(t *testing.T) {
	def := Default().Definition("yuki")

	_, ok := def.Ability(-1)
	assert.False(t, ok)
	_, ok = def.Ability(len(def.Abilities))
	assert.False(t, ok)

	ab, ok := def.Ability(1)
	require.True(t, ok)
	assert.Equal(t, "blackflash", ab.Effect)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		code string
	}{
		{
			name: "empty document",
			data: "",
			code: "CATALOG_INVALID",
		},
		{
			name: "missing hp",
			data: `characters: [{id: a, name: A, ceMax: 10, m1Damage: 1, m1CeMod: 2}]`,
			code: "CATALOG_INVALID",
		},
		{
			name: "too many abilities",
			data: `characters:
  - id: a
    name: A
    hp: 10
    ceMax: 10
    m1Damage: 1
    m1CeMod: 2
    abilities:
      - {name: a, effectType: x, ceCost: 1, damage: 1, ceModDamage: 1}
      - {name: b, effectType: x, ceCost: 1, damage: 1, ceModDamage: 1}
      - {name: c, effectType: x, ceCost: 1, damage: 1, ceModDamage: 1}
      - {name: d, effectType: x, ceCost: 1, damage: 1, ceModDamage: 1}
      - {name: e, effectType: x, ceCost: 1, damage: 1, ceModDamage: 1}`,
			code: "CATALOG_INVALID",
		},
		{
			name: "duplicate id",
			data: `characters:
  - {id: a, name: A, hp: 10, ceMax: 10, m1Damage: 1, m1CeMod: 2}
  - {id: a, name: B, hp: 10, ceMax: 10, m1Damage: 1, m1CeMod: 2}`,
			code: "CATALOG_DUPLICATE_ID",
		},
		{
			name: "unknown default",
			data: `defaultCharacter: zed
characters:
  - {id: a, name: A, hp: 10, ceMax: 10, m1Damage: 1, m1CeMod: 2}`,
			code: "CATALOG_INVALID",
		},
		{
			name: "bad version",
			data: `version: not-a-version
characters:
  - {id: a, name: A, hp: 10, ceMax: 10, m1Damage: 1, m1CeMod: 2}`,
			code: "CATALOG_INVALID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Nil(t, c)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path loads embedded catalog", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "yuki", c.DefaultID())
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "characters.json")
		require.NoError(t, os.WriteFile(path, []byte(originalJSON), 0o600))

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"tank", "yuki"}, c.IDs())
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CATALOG_READ_FAILED")
	})
}
