// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import (
	"math"

	"github.com/oklog/ulid/v2"

	"github.com/gachafight/arena/internal/catalog"
)

// Arena bounds on the horizontal plane.
const (
	ArenaHalfWidth = 11.0
	ArenaHalfDepth = 8.0
)

// Side identifies one half of a session. It never changes for the
// lifetime of the session.
type Side int

const (
	SideA Side = 0
	SideB Side = 1
)

// Opponent returns the other side.
func (s Side) Opponent() Side { return 1 - s }

// LifeState is whether a player can act.
type LifeState string

const (
	Alive LifeState = "alive"
	Dead  LifeState = "dead"
)

// Vec3 is a position or rotation.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) finite() bool {
	for _, f := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// ClampToArena clamps the horizontal components to the arena bounds.
func (v Vec3) ClampToArena() Vec3 {
	v.X = math.Max(-ArenaHalfWidth, math.Min(ArenaHalfWidth, v.X))
	v.Z = math.Max(-ArenaHalfDepth, math.Min(ArenaHalfDepth, v.Z))
	return v
}

// SpawnPoint returns the fixed spawn position of a side.
func SpawnPoint(s Side) Vec3 {
	if s == SideA {
		return Vec3{X: -5}
	}
	return Vec3{X: 5}
}

// Definitions resolves character ids to definitions. *catalog.Catalog
// implements it.
type Definitions interface {
	Definition(id string) catalog.CharacterDefinition
}

// PlayerState is one participant of a session.
type PlayerState struct {
	ConnID      ulid.ULID
	IdentityID  string
	DisplayName string
	CharacterID string
	HP          int
	MaxHP       int
	CE          int
	MaxCE       int
	Kills       int
	Position    Vec3
	Rotation    Vec3
	Life        LifeState
	Blocking    bool
	Animation   string
	// LastHitBy is the connection id of the last attacker. It is a plain
	// value; the attacker may have left the session since.
	LastHitBy ulid.ULID
}

// Alive reports whether the player can act and be targeted.
func (p *PlayerState) Alive() bool { return p.Life == Alive }

// State is the mutable part of a session.
type State struct {
	Players [2]PlayerState
}

func (st *State) sideOf(conn ulid.ULID) (Side, bool) {
	for i := range st.Players {
		if st.Players[i].ConnID == conn {
			return Side(i), true
		}
	}
	return 0, false
}

// newPlayer builds the initial state of a participant.
func newPlayer(e QueueEntry, side Side, def catalog.CharacterDefinition) PlayerState {
	return PlayerState{
		ConnID:      e.ConnID,
		IdentityID:  e.IdentityID,
		DisplayName: e.DisplayName,
		CharacterID: def.ID,
		HP:          def.HP,
		MaxHP:       def.HP,
		CE:          def.CEMax,
		MaxCE:       def.CEMax,
		Position:    SpawnPoint(side),
		Life:        Alive,
		Animation:   "idle",
	}
}

// PlayerView is the public projection of a PlayerState sent to clients.
type PlayerView struct {
	SocketID    string    `json:"socketId"`
	Name        string    `json:"name"`
	CharacterID string    `json:"characterId"`
	Side        Side      `json:"side"`
	HP          int       `json:"hp"`
	MaxHP       int       `json:"maxHp"`
	CE          int       `json:"ce"`
	MaxCE       int       `json:"maxCe"`
	Kills       int       `json:"kills"`
	Position    Vec3      `json:"position"`
	Rotation    Vec3      `json:"rotation"`
	State       LifeState `json:"state"`
	Blocking    bool      `json:"blocking"`
	Animation   string    `json:"animation"`
}

// View returns the public fields of p.
func (p *PlayerState) View(side Side) PlayerView {
	return PlayerView{
		SocketID:    p.ConnID.String(),
		Name:        p.DisplayName,
		CharacterID: p.CharacterID,
		Side:        side,
		HP:          p.HP,
		MaxHP:       p.MaxHP,
		CE:          p.CE,
		MaxCE:       p.MaxCE,
		Kills:       p.Kills,
		Position:    p.Position,
		Rotation:    p.Rotation,
		State:       p.Life,
		Blocking:    p.Blocking,
		Animation:   p.Animation,
	}
}

// Snapshot is the authoritative state of a session at one instant.
type Snapshot struct {
	SessionID string        `json:"roomId"`
	Players   [2]PlayerView `json:"players"`
}
