// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import (
	"math"

	"github.com/oklog/ulid/v2"
)

const (
	blockMultiplier = 0.5
	maxAnimationLen = 32
)

// HitOutcome is the result of a resolved attack.
type HitOutcome struct {
	Attacker     Side
	Target       Side
	AttackerConn ulid.ULID
	TargetConn   ulid.ULID
	// AbilityIndex is nil for a basic attack.
	AbilityIndex *int
	// Damage is the effective damage after blocking.
	Damage   int
	TargetHP int
	Killed   bool
	// KillerIdentity is set when Killed is true.
	KillerIdentity string
}

// RespawnOutcome is the result of a resolved respawn.
type RespawnOutcome struct {
	Side     Side
	Conn     ulid.ULID
	HP       int
	CE       int
	Position Vec3
}

// StateUpdate is a client's report of its own movement and stance.
type StateUpdate struct {
	Position  Vec3
	Rotation  Vec3
	Blocking  bool
	Animation string
}

// ResolveBasicAttack resolves an M1 attack. A rejected attack returns an
// error and leaves st unchanged.
func ResolveBasicAttack(st *State, defs Definitions, attacker, target ulid.ULID, ceRequested bool) (HitOutcome, error) {
	a, t, err := checkParticipants(st, attacker, target)
	if err != nil {
		return HitOutcome{}, err
	}
	atk := &st.Players[a]
	def := defs.Definition(atk.CharacterID)

	cost, dmg := 0, def.M1Damage
	if ceRequested {
		cost, dmg = def.M1CECost, def.M1CEDamage
	}
	if atk.CE < cost {
		return HitOutcome{}, rejection(CodeInsufficientCE).
			With("ce", atk.CE).With("cost", cost).
			Errorf("not enough CE")
	}

	atk.CE -= cost
	return hit(st, a, t, nil, dmg), nil
}

// ResolveAbility resolves the use of ability slot index. A rejected
// ability returns an error and leaves st unchanged. Cooldowns are not
// tracked here.
func ResolveAbility(st *State, defs Definitions, attacker, target ulid.ULID, index int, ceRequested bool) (HitOutcome, error) {
	a, t, err := checkParticipants(st, attacker, target)
	if err != nil {
		return HitOutcome{}, err
	}
	atk := &st.Players[a]
	def := defs.Definition(atk.CharacterID)

	ability, ok := def.Ability(index)
	if !ok {
		return HitOutcome{}, rejection(CodeAbilityOutOfRange).
			With("ability_index", index).With("character_id", def.ID).
			Errorf("ability index out of range")
	}

	cost, dmg := 0, ability.Damage
	if ceRequested {
		cost, dmg = ability.CECost, ability.CEDamage
	}
	if atk.CE < cost {
		return HitOutcome{}, rejection(CodeInsufficientCE).
			With("ce", atk.CE).With("cost", cost).With("ability_index", index).
			Errorf("not enough CE")
	}

	atk.CE -= cost
	return hit(st, a, t, &index, dmg), nil
}

func checkParticipants(st *State, attacker, target ulid.ULID) (Side, Side, error) {
	a, ok := st.sideOf(attacker)
	if !ok {
		return 0, 0, rejection(CodeUnknownParticipant).With("conn_id", attacker.String()).Errorf("attacker is not in this session")
	}
	t, ok := st.sideOf(target)
	if !ok {
		return 0, 0, rejection(CodeUnknownParticipant).With("conn_id", target.String()).Errorf("target is not in this session")
	}
	if a == t {
		return 0, 0, rejection(CodeSameSide).Errorf("cannot target own side")
	}
	if !st.Players[a].Alive() {
		return 0, 0, rejection(CodeAttackerDead).Errorf("attacker is dead")
	}
	if !st.Players[t].Alive() {
		return 0, 0, rejection(CodeTargetDead).Errorf("target is dead")
	}
	return a, t, nil
}

func hit(st *State, a, t Side, index *int, raw int) HitOutcome {
	atk, tgt := &st.Players[a], &st.Players[t]
	dealt, killed := applyDamage(atk, tgt, raw)

	out := HitOutcome{
		Attacker:     a,
		Target:       t,
		AttackerConn: atk.ConnID,
		TargetConn:   tgt.ConnID,
		AbilityIndex: index,
		Damage:       dealt,
		TargetHP:     tgt.HP,
		Killed:       killed,
	}
	if killed {
		out.KillerIdentity = atk.IdentityID
	}
	return out
}

// applyDamage applies raw damage from attacker to target and reports the
// effective damage and whether the hit was the killing blow.
func applyDamage(attacker, target *PlayerState, raw int) (int, bool) {
	mult := 1.0
	if target.Blocking {
		mult = blockMultiplier
	}
	dealt := max(int(math.Floor(float64(raw)*mult)), 0)

	target.HP = max(target.HP-dealt, 0)
	target.LastHitBy = attacker.ConnID

	if target.HP == 0 && target.Life == Alive {
		target.Life = Dead
		target.Blocking = false
		attacker.Kills++
		return dealt, true
	}
	return dealt, false
}

// ResolveRespawn brings a dead player back at full HP and CE on its
// side's spawn point.
func ResolveRespawn(st *State, defs Definitions, conn ulid.ULID) (RespawnOutcome, error) {
	side, ok := st.sideOf(conn)
	if !ok {
		return RespawnOutcome{}, rejection(CodeUnknownParticipant).With("conn_id", conn.String()).Errorf("not in this session")
	}
	p := &st.Players[side]
	if p.Alive() {
		return RespawnOutcome{}, rejection(CodeNotDead).Errorf("player is alive")
	}

	def := defs.Definition(p.CharacterID)
	p.HP, p.MaxHP = def.HP, def.HP
	p.CE, p.MaxCE = def.CEMax, def.CEMax
	p.Life = Alive
	p.Blocking = false
	p.Position = SpawnPoint(side)
	p.Animation = "idle"

	return RespawnOutcome{
		Side:     side,
		Conn:     conn,
		HP:       p.HP,
		CE:       p.CE,
		Position: p.Position,
	}, nil
}

// ResolveCERegen adds one regen step to a living player's CE, clamped to
// the maximum, and returns the new value.
func ResolveCERegen(st *State, defs Definitions, conn ulid.ULID) (int, error) {
	side, ok := st.sideOf(conn)
	if !ok {
		return 0, rejection(CodeUnknownParticipant).With("conn_id", conn.String()).Errorf("not in this session")
	}
	p := &st.Players[side]
	if !p.Alive() {
		return 0, rejection(CodeInvalidState).Errorf("dead players do not regenerate")
	}
	regen := defs.Definition(p.CharacterID).CERegen
	p.CE = min(p.CE+max(regen, 0), p.MaxCE)
	return p.CE, nil
}

// ApplyStateUpdate records a movement report. Positions are clamped to
// the arena; non-finite values and updates from dead players are rejected.
// Life state is never taken from the client.
func ApplyStateUpdate(st *State, conn ulid.ULID, u StateUpdate) (Side, PlayerView, error) {
	side, ok := st.sideOf(conn)
	if !ok {
		return 0, PlayerView{}, rejection(CodeUnknownParticipant).With("conn_id", conn.String()).Errorf("not in this session")
	}
	if !u.Position.finite() || !u.Rotation.finite() {
		return 0, PlayerView{}, rejection(CodeInvalidState).Errorf("non-finite coordinates")
	}
	p := &st.Players[side]
	if !p.Alive() {
		return 0, PlayerView{}, rejection(CodeInvalidState).Errorf("dead players cannot move")
	}

	p.Position = u.Position.ClampToArena()
	p.Rotation = u.Rotation
	p.Blocking = u.Blocking
	if u.Animation != "" {
		if len(u.Animation) > maxAnimationLen {
			u.Animation = u.Animation[:maxAnimationLen]
		}
		p.Animation = u.Animation
	}
	return side, p.View(side), nil
}
