// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package match holds the matchmaking queue, the session registry, and the
// combat rules that mutate a session's player state.
//
// The Resolve* functions are pure transitions over a State and never touch
// the queue or registry. Session wraps them with a per-session lock.
package match
