// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package core

import (
	"context"
	"time"
)

// DefaultBroadcastInterval is the room-sync period.
const DefaultBroadcastInterval = 100 * time.Millisecond

// Broadcaster periodically sends every live session's snapshot to both of
// its participants. A full outbox drops that participant's copy; other
// sessions are unaffected.
type Broadcaster struct {
	engine   *Engine
	interval time.Duration
}

// NewBroadcaster creates a broadcaster. A non-positive interval uses
// DefaultBroadcastInterval.
func NewBroadcaster(engine *Engine, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	return &Broadcaster{engine: engine, interval: interval}
}

// Run broadcasts on every tick until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.BroadcastOnce(ctx)
		}
	}
}

// BroadcastOnce sends one round of room-sync events and returns the number
// of sessions covered.
func (b *Broadcaster) BroadcastOnce(ctx context.Context) int {
	start := time.Now()
	n := 0
	for _, s := range b.engine.Sessions() {
		if s.Ended() {
			continue
		}
		snap := s.Snapshot()
		b.engine.broadcast(ctx, s, Event{Type: EventRoomSync, Data: RoomSyncPayload{Players: snap.Players}})
		n++
	}
	b.engine.metrics.ObserveBroadcast(since(start))
	return n
}
