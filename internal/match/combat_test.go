// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gachafight/arena/pkg/errutil"
)

func TestResolveBasicAttack_Damage(t *testing.T) {
	st, defs := newTestState(t, "fighter")
	a, b := st.Players[SideA].ConnID, st.Players[SideB].ConnID

	out, err := ResolveBasicAttack(st, defs, a, b, false)
	require.NoError(t, err)
	assert.Equal(t, 30, out.Damage)
	assert.Equal(t, 70, out.TargetHP)
	assert.Nil(t, out.AbilityIndex)
	assert.Equal(t, 50, st.Players[SideA].CE, "plain M1 costs no CE")
	assert.Equal(t, a, st.Players[SideB].LastHitBy)
	assert.False(t, out.Killed)
}

func TestResolveBasicAttack_CEBoosted(t *testing.T) {
	st, defs := newTestState(t, "fighter")
	a, b := st.Players[SideA].ConnID, st.Players[SideB].ConnID

	out, err := ResolveBasicAttack(st, defs, a, b, true)
	require.NoError(t, err)
	assert.Equal(t, 45, out.Damage)
	assert.Equal(t, 45, st.Players[SideA].CE)
}

func TestApplyDamage_BlockingFloorsHalf(t *testing.T) {
	tests := []struct {
		raw  int
		want int
	}{
		{raw: 30, want: 15},
		{raw: 31, want: 15},
		{raw: 1, want: 0},
		{raw: 0, want: 0},
		{raw: -10, want: 0},
	}

	for _, tt := range tests {
		atk := PlayerState{ConnID: NewID(), Life: Alive}
		tgt := PlayerState{HP: 100, MaxHP: 100, Life: Alive, Blocking: true}

		dealt, killed := applyDamage(&atk, &tgt, tt.raw)
		assert.Equal(t, tt.want, dealt, "raw %d", tt.raw)
		assert.Equal(t, 100-tt.want, tgt.HP)
		assert.False(t, killed)
	}
}

func TestResolveBasicAttack_BlockingTarget(t *testing.T) {
	st, defs := newTestState(t, "brute")
	a, b := st.Players[SideA].ConnID, st.Players[SideB].ConnID
	st.Players[SideA].Blocking = true

	// brute's M1 is 31; floor(15.5) = 15
	out, err := ResolveBasicAttack(st, defs, b, a, false)
	require.NoError(t, err)
	assert.Equal(t, 15, out.Damage)
	assert.Equal(t, 85, st.Players[SideA].HP)
}

func TestResolveBasicAttack_KillingBlow(t *testing.T) {
	st, defs := newTestState(t, "fighter")
	a, b := st.Players[SideA].ConnID, st.Players[SideB].ConnID
	st.Players[SideB].HP = 25

	out, err := ResolveBasicAttack(st, defs, a, b, false)
	require.NoError(t, err)

	assert.True(t, out.Killed)
	assert.Equal(t, 30, out.Damage, "reported damage is the effective hit, not capped at remaining HP")
	assert.Equal(t, 0, out.TargetHP)
	assert.Equal(t, 0, st.Players[SideB].HP)
	assert.Equal(t, st.Players[SideA].IdentityID, out.KillerIdentity)
	assert.Equal(t, Dead, st.Players[SideB].Life)
	assert.Equal(t, 1, st.Players[SideA].Kills)
}

func TestResolveAbility(t *testing.T) {
	st, defs := newTestState(t, "fighter")
	a, b := st.Players[SideA].ConnID, st.Players[SideB].ConnID

	out, err := ResolveAbility(st, defs, a, b, 0, true)
	require.NoError(t, err)
	require.NotNil(t, out.AbilityIndex)
	assert.Equal(t, 0, *out.AbilityIndex)
	assert.Equal(t, 60, out.Damage)
	assert.Equal(t, 30, st.Players[SideA].CE)

	out, err = ResolveAbility(st, defs, a, b, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 40, out.Damage)
	assert.Equal(t, 30, st.Players[SideA].CE, "unboosted ability costs no CE")
	assert.Equal(t, 0, out.TargetHP)
	assert.True(t, out.Killed)
}

func TestResolve_RejectionsLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(st *State)
		intent  func(st *State, defs Definitions) error
		code    string
	}{
		{
			name:    "insufficient CE for M1",
			prepare: func(st *State) { st.Players[SideA].CE = 4 },
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveBasicAttack(st, defs, st.Players[SideA].ConnID, st.Players[SideB].ConnID, true)
				return err
			},
			code: CodeInsufficientCE,
		},
		{
			name:    "insufficient CE for ability",
			prepare: func(st *State) { st.Players[SideA].CE = 19 },
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveAbility(st, defs, st.Players[SideA].ConnID, st.Players[SideB].ConnID, 0, true)
				return err
			},
			code: CodeInsufficientCE,
		},
		{
			name: "dead target",
			prepare: func(st *State) {
				st.Players[SideB].HP = 0
				st.Players[SideB].Life = Dead
			},
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveBasicAttack(st, defs, st.Players[SideA].ConnID, st.Players[SideB].ConnID, false)
				return err
			},
			code: CodeTargetDead,
		},
		{
			name: "dead attacker",
			prepare: func(st *State) {
				st.Players[SideA].HP = 0
				st.Players[SideA].Life = Dead
			},
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveBasicAttack(st, defs, st.Players[SideA].ConnID, st.Players[SideB].ConnID, false)
				return err
			},
			code: CodeAttackerDead,
		},
		{
			name: "self target",
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveBasicAttack(st, defs, st.Players[SideA].ConnID, st.Players[SideA].ConnID, false)
				return err
			},
			code: CodeSameSide,
		},
		{
			name: "unknown ability index",
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveAbility(st, defs, st.Players[SideA].ConnID, st.Players[SideB].ConnID, 3, false)
				return err
			},
			code: CodeAbilityOutOfRange,
		},
		{
			name: "negative ability index",
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveAbility(st, defs, st.Players[SideA].ConnID, st.Players[SideB].ConnID, -2, false)
				return err
			},
			code: CodeAbilityOutOfRange,
		},
		{
			name: "unknown target",
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveBasicAttack(st, defs, st.Players[SideA].ConnID, NewID(), false)
				return err
			},
			code: CodeUnknownParticipant,
		},
		{
			name: "unknown attacker",
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveBasicAttack(st, defs, NewID(), st.Players[SideB].ConnID, false)
				return err
			},
			code: CodeUnknownParticipant,
		},
		{
			name: "respawn while alive",
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveRespawn(st, defs, st.Players[SideA].ConnID)
				return err
			},
			code: CodeNotDead,
		},
		{
			name: "regen while dead",
			prepare: func(st *State) {
				st.Players[SideA].HP = 0
				st.Players[SideA].Life = Dead
			},
			intent: func(st *State, defs Definitions) error {
				_, err := ResolveCERegen(st, defs, st.Players[SideA].ConnID)
				return err
			},
			code: CodeInvalidState,
		},
		{
			name: "non-finite movement",
			intent: func(st *State, _ Definitions) error {
				_, _, err := ApplyStateUpdate(st, st.Players[SideA].ConnID, StateUpdate{Position: Vec3{X: math.NaN()}})
				return err
			},
			code: CodeInvalidState,
		},
		{
			name: "movement while dead",
			prepare: func(st *State) {
				st.Players[SideA].HP = 0
				st.Players[SideA].Life = Dead
			},
			intent: func(st *State, _ Definitions) error {
				_, _, err := ApplyStateUpdate(st, st.Players[SideA].ConnID, StateUpdate{Position: Vec3{X: 1}})
				return err
			},
			code: CodeInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, defs := newTestState(t, "fighter")
			if tt.prepare != nil {
				tt.prepare(st)
			}
			before := *st

			err := tt.intent(st, defs)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Equal(t, before, *st)
		})
	}
}

func TestResolveRespawn(t *testing.T) {
	st, defs := newTestState(t, "fighter")
	b := st.Players[SideB].ConnID
	st.Players[SideB] = PlayerState{
		ConnID: b, CharacterID: "fighter", HP: 0, MaxHP: 100, CE: 3, MaxCE: 50,
		Life: Dead, Position: Vec3{X: 9, Z: -7},
	}

	out, err := ResolveRespawn(st, defs, b)
	require.NoError(t, err)
	assert.Equal(t, SideB, out.Side)
	assert.Equal(t, 100, out.HP)
	assert.Equal(t, 50, out.CE)
	assert.Equal(t, SpawnPoint(SideB), out.Position)

	p := st.Players[SideB]
	assert.Equal(t, Alive, p.Life)
	assert.Equal(t, p.MaxHP, p.HP)
	assert.Equal(t, p.MaxCE, p.CE)
}

func TestResolveCERegen_ClampsAtMax(t *testing.T) {
	st, defs := newTestState(t, "fighter")
	a := st.Players[SideA].ConnID
	st.Players[SideA].CE = 0

	ce, err := ResolveCERegen(st, defs, a)
	require.NoError(t, err)
	assert.Equal(t, 10, ce)

	for range 100 {
		ce, err = ResolveCERegen(st, defs, a)
		require.NoError(t, err)
		assert.LessOrEqual(t, ce, st.Players[SideA].MaxCE)
	}
	assert.Equal(t, 50, ce)
}

func TestResolveCERegen_DefaultRate(t *testing.T) {
	st, defs := newTestState(t, "brute")
	b := st.Players[SideB].ConnID
	st.Players[SideB].CE = 0

	ce, err := ResolveCERegen(st, defs, b)
	require.NoError(t, err)
	assert.Equal(t, 1, ce, "missing regen rate defaults to 1")
}

func TestApplyStateUpdate_ClampsToArena(t *testing.T) {
	st, _ := newTestState(t, "fighter")
	a := st.Players[SideA].ConnID

	side, view, err := ApplyStateUpdate(st, a, StateUpdate{
		Position:  Vec3{X: 40, Y: 2, Z: -30},
		Rotation:  Vec3{Y: 1.5},
		Blocking:  true,
		Animation: "run",
	})
	require.NoError(t, err)
	assert.Equal(t, SideA, side)
	assert.Equal(t, Vec3{X: ArenaHalfWidth, Y: 2, Z: -ArenaHalfDepth}, view.Position)
	assert.True(t, view.Blocking)
	assert.Equal(t, "run", view.Animation)
	assert.Equal(t, Alive, st.Players[SideA].Life)
}

func TestApplyStateUpdate_DeadPlayerIsFrozen(t *testing.T) {
	st, _ := newTestState(t, "fighter")
	a := st.Players[SideA].ConnID
	st.Players[SideA].HP = 0
	st.Players[SideA].Life = Dead
	before := st.Players[SideA]

	_, _, err := ApplyStateUpdate(st, a, StateUpdate{Position: Vec3{X: 3}, Animation: "death"})
	errutil.AssertErrorCode(t, err, CodeInvalidState)
	assert.Equal(t, before, st.Players[SideA], "position, stance and animation stay at the moment of death")
}

// Random intent sequences never break the HP/CE bounds or the
// dead-iff-zero-HP invariant.
func TestResolve_InvariantsHoldUnderRandomIntents(t *testing.T) {
	st, defs := newTestState(t, "brute")
	conns := [2]ulid.ULID{st.Players[SideA].ConnID, st.Players[SideB].ConnID}
	rng := rand.New(rand.NewPCG(1, 2))

	for range 5000 {
		from := rng.IntN(2)
		to := rng.IntN(2)
		switch rng.IntN(5) {
		case 0:
			_, _ = ResolveBasicAttack(st, defs, conns[from], conns[to], rng.IntN(2) == 0)
		case 1:
			_, _ = ResolveAbility(st, defs, conns[from], conns[to], rng.IntN(3)-1, rng.IntN(2) == 0)
		case 2:
			_, _ = ResolveRespawn(st, defs, conns[from])
		case 3:
			_, _ = ResolveCERegen(st, defs, conns[from])
		case 4:
			_, _, _ = ApplyStateUpdate(st, conns[from], StateUpdate{
				Position: Vec3{X: rng.Float64()*60 - 30, Z: rng.Float64()*60 - 30},
				Blocking: rng.IntN(2) == 0,
			})
		}

		for i := range st.Players {
			p := st.Players[i]
			require.GreaterOrEqual(t, p.HP, 0)
			require.LessOrEqual(t, p.HP, p.MaxHP)
			require.GreaterOrEqual(t, p.CE, 0)
			require.LessOrEqual(t, p.CE, p.MaxCE)
			require.Equal(t, p.HP == 0, p.Life == Dead)
			require.LessOrEqual(t, math.Abs(p.Position.X), ArenaHalfWidth)
			require.LessOrEqual(t, math.Abs(p.Position.Z), ArenaHalfDepth)
		}
	}
}
