// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Registry owns the live sessions. The connection index is derived from
// the session set and only changes in Create and Destroy.
type Registry struct {
	defs Definitions
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[ulid.ULID]*Session
	byConn   map[ulid.ULID]*Session
}

// NewRegistry creates an empty registry that initialises players from defs.
func NewRegistry(defs Definitions) *Registry {
	return &Registry{
		defs:     defs,
		now:      time.Now,
		sessions: make(map[ulid.ULID]*Session),
		byConn:   make(map[ulid.ULID]*Session),
	}
}

// Create starts a session for two paired entries. a takes side 0 and b
// side 1.
func (r *Registry) Create(a, b QueueEntry) (*Session, error) {
	if a.ConnID == b.ConnID {
		return nil, oops.Code("MATCH_SAME_CONNECTION").With("conn_id", a.ConnID.String()).
			Errorf("cannot match a connection against itself")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range []QueueEntry{a, b} {
		if existing, ok := r.byConn[e.ConnID]; ok {
			return nil, oops.Code("MATCH_CONNECTION_BUSY").
				With("conn_id", e.ConnID.String()).
				With("session_id", existing.ID.String()).
				Errorf("connection is already in a session")
		}
	}

	s := newSession(NewID(), r.now(), r.defs, a, b)
	r.sessions[s.ID] = s
	for _, c := range s.conns {
		r.byConn[c] = s
	}
	return s, nil
}

// FindBySession returns the session with id.
func (r *Registry) FindBySession(id ulid.ULID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// FindByConnection returns the session conn belongs to and its side.
func (r *Registry) FindByConnection(conn ulid.ULID) (*Session, Side, bool) {
	r.mu.RLock()
	s, ok := r.byConn[conn]
	r.mu.RUnlock()
	if !ok {
		return nil, 0, false
	}
	side, _ := s.SideOf(conn)
	return s, side, true
}

// Destroy removes the session and its index entries and marks it ended.
// It returns true only for the call that removed it.
func (r *Registry) Destroy(id ulid.ULID) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		for _, c := range s.conns {
			if r.byConn[c] == s {
				delete(r.byConn, c)
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	s.end()
	return s, true
}

// List returns the live sessions in no particular order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
