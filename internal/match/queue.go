// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// QueueEntry is a connection waiting for an opponent.
type QueueEntry struct {
	ConnID      ulid.ULID
	IdentityID  string
	DisplayName string
	CharacterID string
	EnqueuedAt  time.Time
}

// Queue is a FIFO matchmaking queue. It is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []QueueEntry
	pending map[ulid.ULID]struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[ulid.ULID]struct{}),
	}
}

// Enqueue appends e unless its connection already has a pending entry.
// It reports whether the entry was added.
func (q *Queue) Enqueue(e QueueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[e.ConnID]; ok {
		return false
	}
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}
	q.entries = append(q.entries, e)
	q.pending[e.ConnID] = struct{}{}
	return true
}

// DequeuePair removes and returns the two longest-waiting entries.
// ok is false, and the queue untouched, when fewer than two are waiting.
func (q *Queue) DequeuePair() (first, second QueueEntry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) < 2 {
		return QueueEntry{}, QueueEntry{}, false
	}
	first, second = q.entries[0], q.entries[1]
	q.entries[0], q.entries[1] = QueueEntry{}, QueueEntry{}
	q.entries = q.entries[2:]
	delete(q.pending, first.ConnID)
	delete(q.pending, second.ConnID)
	return first, second, true
}

// Remove drops the pending entry for conn. It reports whether one existed.
func (q *Queue) Remove(conn ulid.ULID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[conn]; !ok {
		return false
	}
	delete(q.pending, conn)
	for i := range q.entries {
		if q.entries[i].ConnID == conn {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether conn has a pending entry.
func (q *Queue) Contains(conn ulid.ULID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[conn]
	return ok
}

// Len returns the number of waiting entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
