// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gachafight/arena/internal/auth"
	"github.com/gachafight/arena/internal/logging"
	"github.com/gachafight/arena/internal/match"
	"github.com/gachafight/arena/pkg/errutil"
)

var tracer = otel.Tracer("gachafight/core")

// Intent status labels that are not rejection codes.
const (
	StatusOK      = "ok"
	StatusIgnored = "ignored"
)

// ConnState is where a connection is in its lifecycle.
type ConnState int

const (
	StateIdle ConnState = iota
	StateQueued
	StateInMatch
	StateMatchEnded
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateInMatch:
		return "in-match"
	case StateMatchEnded:
		return "match-ended"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Rewarder credits a kill and a spin to an identity without blocking.
type Rewarder interface {
	Dispatch(identityID string) bool
}

// Metrics receives engine counters.
type Metrics interface {
	Intent(intent, status string)
	MatchStarted()
	MatchEnded(outcome string)
	SetQueueDepth(n int)
	Dropped(event string)
	ObserveBroadcast(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) Intent(string, string)    {}
func (noopMetrics) MatchStarted()            {}
func (noopMetrics) MatchEnded(string)        {}
func (noopMetrics) SetQueueDepth(int)        {}
func (noopMetrics) Dropped(string)           {}
func (noopMetrics) ObserveBroadcast(float64) {}

type noopRewarder struct{}

func (noopRewarder) Dispatch(string) bool { return false }

type connEntry struct {
	conn     Conn
	identity auth.Identity
	state    ConnState
}

// Engine owns the connection table and routes intents to sessions.
//
// Lock order is engine then session. Intent handlers release the session
// lock before they look up peer connections.
type Engine struct {
	queue    *match.Queue
	registry *match.Registry
	rewards  Rewarder
	metrics  Metrics
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[ulid.ULID]*connEntry
}

// Option configures an Engine.
type Option func(*Engine)

// WithRewarder sets the kill credit sink.
func WithRewarder(r Rewarder) Option {
	return func(e *Engine) { e.rewards = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine over a queue and a session registry.
func NewEngine(queue *match.Queue, registry *match.Registry, opts ...Option) *Engine {
	e := &Engine{
		queue:    queue,
		registry: registry,
		rewards:  noopRewarder{},
		metrics:  noopMetrics{},
		logger:   slog.Default(),
		conns:    make(map[ulid.ULID]*connEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connect registers an authenticated connection and sends it a welcome.
func (e *Engine) Connect(ctx context.Context, c Conn, id auth.Identity) error {
	e.mu.Lock()
	if _, exists := e.conns[c.ID()]; exists {
		e.mu.Unlock()
		return oops.Code("CONN_DUPLICATE").With("conn_id", c.ID().String()).Errorf("connection already registered")
	}
	e.conns[c.ID()] = &connEntry{conn: c, identity: id, state: StateIdle}
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "connection registered",
		"conn_id", c.ID().String(), "identity_id", id.ID, "character_id", id.CharacterID)
	e.send(ctx, c, Event{Type: EventWelcome, Data: WelcomePayload{
		SocketID:    c.ID().String(),
		CharacterID: id.CharacterID,
	}})
	return nil
}

// State returns the lifecycle state of a connection.
func (e *Engine) State(conn ulid.ULID) ConnState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.conns[conn]; ok {
		return entry.state
	}
	return StateDisconnected
}

// Lookup returns a registered connection.
func (e *Engine) Lookup(conn ulid.ULID) (Conn, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.conns[conn]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// Connections returns the number of registered connections.
func (e *Engine) Connections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// JoinQueue queues a connection and pairs the two oldest entries once two
// are waiting. Joins from queued or in-match connections are ignored.
func (e *Engine) JoinQueue(ctx context.Context, conn ulid.ULID) {
	ctx, span := tracer.Start(ctx, "engine.join_queue",
		trace.WithAttributes(attribute.String("conn_id", conn.String())))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.conns[conn]
	if !ok || entry.state == StateQueued || entry.state == StateInMatch {
		e.metrics.Intent(EventMatchmakingJoin, StatusIgnored)
		return
	}
	e.queue.Enqueue(match.QueueEntry{
		ConnID:      conn,
		IdentityID:  entry.identity.ID,
		DisplayName: entry.identity.DisplayName,
		CharacterID: entry.identity.CharacterID,
	})
	entry.state = StateQueued
	e.metrics.Intent(EventMatchmakingJoin, StatusOK)

	if a, b, paired := e.queue.DequeuePair(); paired {
		e.startMatchLocked(ctx, a, b)
	}
	e.metrics.SetQueueDepth(e.queue.Len())
}

func (e *Engine) startMatchLocked(ctx context.Context, a, b match.QueueEntry) {
	s, err := e.registry.Create(a, b)
	if err != nil {
		errutil.LogError(e.logger, "failed to create session", err)
		for _, c := range []ulid.ULID{a.ConnID, b.ConnID} {
			if entry, ok := e.conns[c]; ok {
				entry.state = StateIdle
			}
		}
		return
	}
	e.metrics.MatchStarted()

	snap := s.Snapshot()
	for side, c := range s.Conns() {
		entry, ok := e.conns[c]
		if !ok {
			continue
		}
		entry.state = StateInMatch
		e.send(ctx, entry.conn, Event{Type: EventMatchmakingMatched, Data: MatchedPayload{
			RoomID: s.ID.String(),
			Side:   match.Side(side),
			Room:   snap,
		}})
	}
	e.logger.InfoContext(logging.WithSession(ctx, s.ID.String()), "match started",
		"conn_a", a.ConnID.String(), "conn_b", b.ConnID.String())
}

// LeaveQueue removes a queued connection from the queue.
func (e *Engine) LeaveQueue(ctx context.Context, conn ulid.ULID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.conns[conn]
	if !ok || entry.state != StateQueued {
		e.metrics.Intent(EventMatchmakingLeave, StatusIgnored)
		return
	}
	e.queue.Remove(conn)
	entry.state = StateIdle
	e.metrics.Intent(EventMatchmakingLeave, StatusOK)
	e.metrics.SetQueueDepth(e.queue.Len())
	e.logger.DebugContext(ctx, "left queue", "conn_id", conn.String())
}

// JoinRoom sends an immediate snapshot when roomID is the caller's own
// session. Any other id is ignored.
func (e *Engine) JoinRoom(ctx context.Context, conn ulid.ULID, roomID string) {
	s, _, ok := e.registry.FindByConnection(conn)
	if !ok || s.ID.String() != roomID {
		e.metrics.Intent(EventJoinRoom, StatusIgnored)
		return
	}
	c, ok := e.Lookup(conn)
	if !ok {
		return
	}
	e.metrics.Intent(EventJoinRoom, StatusOK)
	e.send(ctx, c, Event{Type: EventRoomSync, Data: RoomSyncPayload{Players: s.Snapshot().Players}})
}

// UpdateState applies a movement report and relays the sanitised result to
// the peer only.
func (e *Engine) UpdateState(ctx context.Context, conn ulid.ULID, p StatePayload) {
	s, _, ok := e.registry.FindByConnection(conn)
	if !ok {
		e.metrics.Intent(EventState, StatusIgnored)
		return
	}
	side, view, err := s.UpdateState(conn, match.StateUpdate{
		Position:  p.Position,
		Rotation:  p.Rotation,
		Blocking:  p.Blocking,
		Animation: p.Animation,
	})
	if err != nil {
		e.reject(ctx, EventState, conn, err)
		return
	}
	e.metrics.Intent(EventState, StatusOK)

	e.sendTo(ctx, s.Conn(side.Opponent()), Event{Type: EventStateUpdate, Data: StatePayload{
		SocketID:  view.SocketID,
		Position:  view.Position,
		Rotation:  view.Rotation,
		State:     view.State,
		Blocking:  view.Blocking,
		Animation: view.Animation,
	}})
}

// Attack resolves a hit intent and reports the result to both participants.
// A kill dispatches one reward credit after the session lock is released.
func (e *Engine) Attack(ctx context.Context, conn ulid.ULID, p HitPayload) {
	ctx, span := tracer.Start(ctx, "engine.attack",
		trace.WithAttributes(attribute.String("conn_id", conn.String())))
	defer span.End()

	s, _, ok := e.registry.FindByConnection(conn)
	if !ok {
		e.metrics.Intent(EventHit, StatusIgnored)
		return
	}
	ctx = logging.WithSession(ctx, s.ID.String())

	// An unparseable target can never match a participant.
	target, _ := ulid.ParseStrict(p.TargetSocketID)
	var (
		out match.HitOutcome
		err error
	)
	if p.AbilityIndex != nil {
		out, err = s.Ability(conn, target, *p.AbilityIndex, p.CEUsed)
	} else {
		out, err = s.Attack(conn, target, p.CEUsed)
	}
	if err != nil {
		span.SetAttributes(attribute.String("intent.rejected", errutil.Code(err)))
		e.reject(ctx, EventHit, conn, err)
		return
	}
	e.metrics.Intent(EventHit, StatusOK)
	span.SetAttributes(attribute.Int("hit.damage", out.Damage), attribute.Bool("hit.killed", out.Killed))

	if out.Killed && out.KillerIdentity != "" {
		if !e.rewards.Dispatch(out.KillerIdentity) {
			e.logger.WarnContext(ctx, "kill credit not queued", "identity_id", out.KillerIdentity)
		}
	}

	ev := Event{Type: EventHitResult, Data: HitResultPayload{
		FromSocketID:   out.AttackerConn.String(),
		TargetSocketID: out.TargetConn.String(),
		Damage:         out.Damage,
		TargetHP:       out.TargetHP,
		AbilityIndex:   out.AbilityIndex,
	}}
	e.broadcast(ctx, s, ev)
}

// Respawn revives a dead player at their spawn point.
func (e *Engine) Respawn(ctx context.Context, conn ulid.ULID) {
	s, _, ok := e.registry.FindByConnection(conn)
	if !ok {
		e.metrics.Intent(EventRespawn, StatusIgnored)
		return
	}
	out, err := s.Respawn(conn)
	if err != nil {
		e.reject(ctx, EventRespawn, conn, err)
		return
	}
	e.metrics.Intent(EventRespawn, StatusOK)
	e.broadcast(ctx, s, Event{Type: EventRespawn, Data: RespawnPayload{
		SocketID: out.Conn.String(),
		HP:       out.HP,
		CE:       out.CE,
		Position: out.Position,
	}})
}

// RegenCE applies one CE regen tick and reports the new value to the caller.
func (e *Engine) RegenCE(ctx context.Context, conn ulid.ULID) {
	s, _, ok := e.registry.FindByConnection(conn)
	if !ok {
		e.metrics.Intent(EventCERegen, StatusIgnored)
		return
	}
	ce, err := s.RegenCE(conn)
	if err != nil {
		e.reject(ctx, EventCERegen, conn, err)
		return
	}
	e.metrics.Intent(EventCERegen, StatusOK)
	e.sendTo(ctx, conn, Event{Type: EventCEUpdate, Data: CEUpdatePayload{CE: ce}})
}

// Disconnect removes a connection. A queued connection leaves the queue. An
// in-match connection forfeits: the session is destroyed, the opponent is
// told exactly once, and the opponent is credited one kill and one spin.
func (e *Engine) Disconnect(ctx context.Context, conn ulid.ULID) {
	ctx, span := tracer.Start(ctx, "engine.disconnect",
		trace.WithAttributes(attribute.String("conn_id", conn.String())))
	defer span.End()

	var winner string

	e.mu.Lock()
	entry, ok := e.conns[conn]
	if ok {
		delete(e.conns, conn)
		if entry.state == StateQueued {
			e.queue.Remove(conn)
			e.metrics.SetQueueDepth(e.queue.Len())
		}
	}
	if s, side, found := e.registry.FindByConnection(conn); found {
		if _, destroyed := e.registry.Destroy(s.ID); destroyed {
			e.metrics.MatchEnded("disconnect")
			opp := side.Opponent()
			winner = s.Player(opp).IdentityID
			if oppEntry, present := e.conns[s.Conn(opp)]; present {
				oppEntry.state = StateMatchEnded
				e.send(ctx, oppEntry.conn, Event{Type: EventOpponentDisconnected})
			}
			e.logger.InfoContext(logging.WithSession(ctx, s.ID.String()), "match ended by disconnect",
				"conn_id", conn.String())
		}
	}
	e.mu.Unlock()

	if winner != "" && !e.rewards.Dispatch(winner) {
		e.logger.WarnContext(ctx, "forfeit credit not queued", "identity_id", winner)
	}
	if ok {
		e.logger.InfoContext(ctx, "connection closed", "conn_id", conn.String(), "state", entry.state.String())
	}
}

// Sessions returns the live sessions.
func (e *Engine) Sessions() []*match.Session { return e.registry.List() }

// QueueLen returns the number of queued connections.
func (e *Engine) QueueLen() int { return e.queue.Len() }

func (e *Engine) broadcast(ctx context.Context, s *match.Session, ev Event) {
	for _, c := range s.Conns() {
		e.sendTo(ctx, c, ev)
	}
}

func (e *Engine) sendTo(ctx context.Context, conn ulid.ULID, ev Event) {
	c, ok := e.Lookup(conn)
	if !ok {
		return
	}
	e.send(ctx, c, ev)
}

func (e *Engine) send(ctx context.Context, c Conn, ev Event) {
	if c.Send(ev) {
		return
	}
	e.metrics.Dropped(ev.Type)
	e.logger.WarnContext(ctx, "event dropped: outbox full", "conn_id", c.ID().String(), "event_type", ev.Type)
}

func (e *Engine) reject(ctx context.Context, intent string, conn ulid.ULID, err error) {
	code := errutil.Code(err)
	if code == "" {
		code = "INTENT_REJECTED"
	}
	e.metrics.Intent(intent, code)
	e.logger.DebugContext(ctx, "intent rejected",
		"conn_id", conn.String(), "intent", intent, "reason", code, "error", err.Error())
}

func since(start time.Time) float64 { return time.Since(start).Seconds() }
