// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package core

import (
	"context"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/gachafight/arena/internal/auth"
	"github.com/gachafight/arena/internal/catalog"
	"github.com/gachafight/arena/internal/match"
	"github.com/gachafight/arena/internal/observability"
)

type fakeConn struct {
	id ulid.ULID

	mu     sync.Mutex
	events []Event
	full   bool
}

func newFakeConn() *fakeConn { return &fakeConn{id: match.NewID()} }

func (c *fakeConn) ID() ulid.ULID { return c.id }

func (c *fakeConn) Send(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *fakeConn) ofType(typ string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) setFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

type fakeRewarder struct {
	mu  sync.Mutex
	ids []string
}

func (r *fakeRewarder) Dispatch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return true
}

func (r *fakeRewarder) credited() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.File{Characters: []catalog.CharacterDefinition{{
		ID:         "fighter",
		Name:       "Fighter",
		HP:         100,
		CEMax:      50,
		CERegen:    10,
		M1Damage:   30,
		M1CEDamage: 45,
		M1CECost:   5,
		Abilities: []catalog.AbilityDefinition{
			{Name: "Slam", Effect: "impact", CECost: 20, Damage: 40, CEDamage: 60},
		},
	}}})
	require.NoError(t, err)
	return c
}

type harness struct {
	engine  *Engine
	rewards *fakeRewarder
	metrics *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		rewards: &fakeRewarder{},
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}
	h.engine = NewEngine(match.NewQueue(), match.NewRegistry(testCatalog(t)),
		WithRewarder(h.rewards), WithMetrics(h.metrics))
	return h
}

func (h *harness) connect(t *testing.T, identity string) *fakeConn {
	t.Helper()
	c := newFakeConn()
	require.NoError(t, h.engine.Connect(context.Background(), c, auth.Identity{
		ID:          identity,
		DisplayName: identity,
		CharacterID: "fighter",
	}))
	return c
}

// matched connects two players and pairs them.
func (h *harness) matched(t *testing.T) (a, b *fakeConn, s *match.Session) {
	t.Helper()
	ctx := context.Background()
	a = h.connect(t, "user-a")
	b = h.connect(t, "user-b")
	h.engine.JoinQueue(ctx, a.ID())
	h.engine.JoinQueue(ctx, b.ID())

	s, _, ok := h.engine.registry.FindByConnection(a.ID())
	require.True(t, ok)
	return a, b, s
}
