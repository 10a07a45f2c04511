// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package catalog loads the read-only character definitions used by matches.
package catalog

import (
	_ "embed"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

//go:embed characters.yaml
var defaultCatalog []byte

// MaxAbilities is the number of ability slots a character can carry.
const MaxAbilities = 4

// Defaults applied to fields that a catalog may omit.
const (
	DefaultCERegen  = 1
	DefaultM1CECost = 5
)

// AbilityDefinition describes one ability slot.
type AbilityDefinition struct {
	Name     string  `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Effect   string  `yaml:"effectType" json:"effectType" jsonschema:"minLength=1"`
	Cooldown float64 `yaml:"cooldown,omitempty" json:"cooldown,omitempty" jsonschema:"minimum=0"`
	CECost   int     `yaml:"ceCost" json:"ceCost" jsonschema:"minimum=0"`
	Damage   int     `yaml:"damage" json:"damage" jsonschema:"minimum=0"`
	CEDamage int     `yaml:"ceModDamage" json:"ceModDamage" jsonschema:"minimum=0"`
}

// CharacterDefinition holds the combat stats of a character.
type CharacterDefinition struct {
	ID         string              `yaml:"id" json:"id" jsonschema:"minLength=1"`
	Name       string              `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Rarity     string              `yaml:"rarity,omitempty" json:"rarity,omitempty" jsonschema:"enum=Common,enum=Rare,enum=SR,enum=SSR,enum=UR"`
	HP         int                 `yaml:"hp" json:"hp" jsonschema:"minimum=1"`
	CEMax      int                 `yaml:"ceMax" json:"ceMax" jsonschema:"minimum=0"`
	CERegen    int                 `yaml:"ceRegen,omitempty" json:"ceRegen,omitempty" jsonschema:"minimum=0"`
	Speed      float64             `yaml:"speed,omitempty" json:"speed,omitempty" jsonschema:"minimum=0"`
	M1Damage   int                 `yaml:"m1Damage" json:"m1Damage" jsonschema:"minimum=0"`
	M1CEDamage int                 `yaml:"m1CeMod" json:"m1CeMod" jsonschema:"minimum=0"`
	M1CECost   int                 `yaml:"m1CeCost,omitempty" json:"m1CeCost,omitempty" jsonschema:"minimum=0"`
	DashCECost int                 `yaml:"dashCeCost,omitempty" json:"dashCeCost,omitempty" jsonschema:"minimum=0"`
	Abilities  []AbilityDefinition `yaml:"abilities,omitempty" json:"abilities,omitempty" jsonschema:"maxItems=4"`
}

// Ability returns the ability in slot i.
func (d CharacterDefinition) Ability(i int) (AbilityDefinition, bool) {
	if i < 0 || i >= len(d.Abilities) {
		return AbilityDefinition{}, false
	}
	return d.Abilities[i], true
}

// File is the on-disk catalog document.
type File struct {
	Version          string                `yaml:"version,omitempty" json:"version,omitempty"`
	DefaultCharacter string                `yaml:"defaultCharacter,omitempty" json:"defaultCharacter,omitempty"`
	Characters       []CharacterDefinition `yaml:"characters" json:"characters" jsonschema:"minItems=1"`
}

// Catalog is an immutable lookup table of character definitions.
// It is safe for concurrent use without synchronization.
type Catalog struct {
	version   string
	defaultID string
	byID      map[string]CharacterDefinition
}

// Load reads a catalog from path. An empty path loads the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	//nolint:gosec // catalog path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("CATALOG_READ_FAILED").With("path", path).Wrap(err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return c, nil
}

// Default returns the embedded catalog. It panics if the embedded data is invalid.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic("embedded character catalog is invalid: " + err.Error())
	}
	return c
}

// Parse validates and builds a catalog from YAML or JSON data.
func Parse(data []byte) (*Catalog, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code("CATALOG_INVALID").Wrap(err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("CATALOG_INVALID").Wrapf(err, "invalid catalog document")
	}

	return New(f)
}

// New builds a catalog from an already decoded document.
func New(f File) (*Catalog, error) {
	if f.Version != "" {
		if _, err := semver.NewVersion(f.Version); err != nil {
			return nil, oops.Code("CATALOG_INVALID").With("version", f.Version).Wrapf(err, "catalog version is not semver")
		}
	}
	if len(f.Characters) == 0 {
		return nil, oops.Code("CATALOG_EMPTY").Errorf("catalog has no characters")
	}

	byID := make(map[string]CharacterDefinition, len(f.Characters))
	for _, def := range f.Characters {
		if def.ID == "" {
			return nil, oops.Code("CATALOG_INVALID").Errorf("character with empty id")
		}
		if _, dup := byID[def.ID]; dup {
			return nil, oops.Code("CATALOG_DUPLICATE_ID").With("character_id", def.ID).Errorf("duplicate character id %q", def.ID)
		}
		if def.HP <= 0 {
			return nil, oops.Code("CATALOG_INVALID").With("character_id", def.ID).Errorf("hp must be positive")
		}
		if len(def.Abilities) > MaxAbilities {
			return nil, oops.Code("CATALOG_INVALID").With("character_id", def.ID).
				Errorf("character has %d abilities, max %d", len(def.Abilities), MaxAbilities)
		}
		if def.CERegen == 0 {
			def.CERegen = DefaultCERegen
		}
		if def.M1CECost == 0 {
			def.M1CECost = DefaultM1CECost
		}
		abilities := make([]AbilityDefinition, len(def.Abilities))
		copy(abilities, def.Abilities)
		def.Abilities = abilities
		byID[def.ID] = def
	}

	defaultID := f.DefaultCharacter
	if defaultID == "" {
		defaultID = f.Characters[0].ID
	}
	if _, ok := byID[defaultID]; !ok {
		return nil, oops.Code("CATALOG_INVALID").With("default_character", defaultID).Errorf("default character %q is not defined", defaultID)
	}

	return &Catalog{
		version:   f.Version,
		defaultID: defaultID,
		byID:      byID,
	}, nil
}

// Definition returns the definition for id, substituting the default
// character when id is unknown.
func (c *Catalog) Definition(id string) CharacterDefinition {
	if def, ok := c.byID[id]; ok {
		return def
	}
	return c.byID[c.defaultID]
}

// Lookup returns the definition for id without substitution.
func (c *Catalog) Lookup(id string) (CharacterDefinition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// DefaultID returns the id used for substitution.
func (c *Catalog) DefaultID() string { return c.defaultID }

// Version returns the catalog document version, if any.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of characters.
func (c *Catalog) Len() int { return len(c.byID) }

// IDs returns the character ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
