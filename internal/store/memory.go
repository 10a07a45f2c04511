// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package store

import (
	"context"
	"slices"
	"sync"

	"github.com/gachafight/arena/internal/auth"
)

// MemoryProfileStore keeps profiles in a map. State is lost on restart.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]auth.Profile
}

// NewMemoryProfileStore creates a store seeded with profiles.
func NewMemoryProfileStore(profiles ...auth.Profile) *MemoryProfileStore {
	s := &MemoryProfileStore{profiles: make(map[string]auth.Profile, len(profiles))}
	for _, p := range profiles {
		p.OwnedCharacters = slices.Clone(p.OwnedCharacters)
		s.profiles[p.ID] = p
	}
	return s
}

// GetProfile returns a copy of the stored profile.
func (s *MemoryProfileStore) GetProfile(_ context.Context, id string) (*auth.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, profileNotFound(id)
	}
	p.OwnedCharacters = slices.Clone(p.OwnedCharacters)
	return &p, nil
}

// CreditKillAndSpin adds one kill and one spin.
func (s *MemoryProfileStore) CreditKillAndSpin(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return profileNotFound(id)
	}
	p.Kills++
	p.Spins++
	s.profiles[id] = p
	return nil
}

// UpsertProfile stores p, keeping the counters of an existing profile.
func (s *MemoryProfileStore) UpsertProfile(_ context.Context, p *auth.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *p
	next.OwnedCharacters = slices.Clone(p.OwnedCharacters)
	if prev, ok := s.profiles[p.ID]; ok {
		next.Kills, next.Spins = prev.Kills, prev.Spins
	}
	s.profiles[p.ID] = next
	return nil
}

// IsTransient implements reward.TransientClassifier. Memory operations
// only fail for missing profiles, which are permanent.
func (s *MemoryProfileStore) IsTransient(error) bool { return false }

// Close is a no-op.
func (s *MemoryProfileStore) Close() error { return nil }
