// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package auth verifies the identity token a client presents when it
// connects and resolves the identity the match server plays it as.
//
// Tokens are issued elsewhere; this package only verifies them. An
// Identity carries the profile id, the display name, and the character the
// player brings into matches:
//   - the profile's selected character, if set
//   - otherwise the first owned character
//   - otherwise DefaultCharacterID
//
// FailureLimiter throttles hosts that keep presenting bad tokens.
package auth
