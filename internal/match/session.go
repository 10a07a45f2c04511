// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session is a live 1v1 match. All reads and writes of its player state
// go through its own lock; sessions never share a lock.
type Session struct {
	ID        ulid.ULID
	CreatedAt time.Time

	// conns is fixed at creation and read without locking.
	conns [2]ulid.ULID
	defs  Definitions

	mu    sync.Mutex
	state State
	ended bool
}

func newSession(id ulid.ULID, now time.Time, defs Definitions, a, b QueueEntry) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		conns:     [2]ulid.ULID{a.ConnID, b.ConnID},
		defs:      defs,
	}
	s.state.Players[SideA] = newPlayer(a, SideA, defs.Definition(a.CharacterID))
	s.state.Players[SideB] = newPlayer(b, SideB, defs.Definition(b.CharacterID))
	return s
}

// Conn returns the connection id of a side.
func (s *Session) Conn(side Side) ulid.ULID { return s.conns[side] }

// Conns returns both connection ids, indexed by side.
func (s *Session) Conns() [2]ulid.ULID { return s.conns }

// SideOf returns the side of conn.
func (s *Session) SideOf(conn ulid.ULID) (Side, bool) {
	for i, c := range s.conns {
		if c == conn {
			return Side(i), true
		}
	}
	return 0, false
}

// Attack resolves a basic attack.
func (s *Session) Attack(attacker, target ulid.ULID, ceRequested bool) (HitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return HitOutcome{}, err
	}
	return ResolveBasicAttack(&s.state, s.defs, attacker, target, ceRequested)
}

// Ability resolves the use of ability slot index. Any index outside the
// character's ability list is rejected.
func (s *Session) Ability(attacker, target ulid.ULID, index int, ceRequested bool) (HitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return HitOutcome{}, err
	}
	return ResolveAbility(&s.state, s.defs, attacker, target, index, ceRequested)
}

// Respawn resolves a respawn request.
func (s *Session) Respawn(conn ulid.ULID) (RespawnOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return RespawnOutcome{}, err
	}
	return ResolveRespawn(&s.state, s.defs, conn)
}

// RegenCE resolves one CE regen tick.
func (s *Session) RegenCE(conn ulid.ULID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return 0, err
	}
	return ResolveCERegen(&s.state, s.defs, conn)
}

// UpdateState applies a movement report.
func (s *Session) UpdateState(conn ulid.ULID, u StateUpdate) (Side, PlayerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return 0, PlayerView{}, err
	}
	return ApplyStateUpdate(&s.state, conn, u)
}

// Snapshot returns the public state of both players.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{SessionID: s.ID.String()}
	for i := range s.state.Players {
		snap.Players[i] = s.state.Players[i].View(Side(i))
	}
	return snap
}

// Player returns a copy of one side's state.
func (s *Session) Player(side Side) PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Players[side]
}

// Ended reports whether the session has been destroyed.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// end marks the session as finished. Intents arriving afterwards are
// rejected. It reports whether this call ended the session.
func (s *Session) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	return true
}

func (s *Session) checkLive() error {
	if s.ended {
		return rejection(CodeSessionEnded).With("session_id", s.ID.String()).Errorf("session has ended")
	}
	return nil
}
