// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package core runs the per-connection lifecycle of the arena: queueing,
// pairing, intent routing, disconnect handling, and the room-sync ticker.
package core

import (
	"github.com/oklog/ulid/v2"

	"github.com/gachafight/arena/internal/match"
)

// Wire event names. Client intents and server events share one namespace.
const (
	EventMatchmakingJoin      = "matchmaking:join"
	EventMatchmakingLeave     = "matchmaking:leave"
	EventMatchmakingMatched   = "matchmaking:matched"
	EventJoinRoom             = "game:join-room"
	EventState                = "game:state"
	EventStateUpdate          = "game:state-update"
	EventHit                  = "game:hit"
	EventHitResult            = "game:hit-result"
	EventRespawn              = "game:respawn"
	EventCERegen              = "game:ce-regen"
	EventCEUpdate             = "game:ce-update"
	EventRoomSync             = "game:room-sync"
	EventOpponentDisconnected = "game:opponent-disconnected"
	EventWelcome              = "session:welcome"
)

// Event is a server-to-client message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Conn is the engine's view of a client connection. Send must not block:
// it reports false when the event was dropped.
type Conn interface {
	ID() ulid.ULID
	Send(Event) bool
}

// WelcomePayload tells a client its connection id.
type WelcomePayload struct {
	SocketID    string `json:"socketId"`
	CharacterID string `json:"characterId"`
}

// MatchedPayload announces a new session to one participant.
type MatchedPayload struct {
	RoomID string         `json:"roomId"`
	Side   match.Side     `json:"side"`
	Room   match.Snapshot `json:"room"`
}

// StatePayload is a movement report, sent by a client and relayed to its peer.
type StatePayload struct {
	SocketID  string          `json:"socketId,omitempty"`
	Position  match.Vec3      `json:"position"`
	Rotation  match.Vec3      `json:"rotation"`
	State     match.LifeState `json:"state,omitempty"`
	Blocking  bool            `json:"blocking"`
	Animation string          `json:"animation"`
}

// HitPayload is an attack intent. A nil AbilityIndex is a basic attack.
type HitPayload struct {
	TargetSocketID string `json:"targetSocketId"`
	AbilityIndex   *int   `json:"abilityIndex,omitempty"`
	CEUsed         bool   `json:"ceUsed"`
}

// HitResultPayload reports a resolved attack to both participants.
type HitResultPayload struct {
	FromSocketID   string `json:"fromSocketId"`
	TargetSocketID string `json:"targetSocketId"`
	Damage         int    `json:"damage"`
	TargetHP       int    `json:"targetHp"`
	AbilityIndex   *int   `json:"abilityIndex,omitempty"`
}

// RespawnPayload reports a respawn to both participants.
type RespawnPayload struct {
	SocketID string     `json:"socketId"`
	HP       int        `json:"hp"`
	CE       int        `json:"ce"`
	Position match.Vec3 `json:"position"`
}

// CEUpdatePayload reports the caller's CE after a regen tick.
type CEUpdatePayload struct {
	CE int `json:"ce"`
}

// RoomSyncPayload is the periodic authoritative snapshot.
type RoomSyncPayload struct {
	Players [2]match.PlayerView `json:"players"`
}
