// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import "github.com/samber/oops"

// Rejection codes carried by intents that leave the session untouched.
const (
	CodeSessionEnded       = "INTENT_SESSION_ENDED"
	CodeUnknownParticipant = "INTENT_UNKNOWN_PARTICIPANT"
	CodeSameSide           = "INTENT_SAME_SIDE"
	CodeAttackerDead       = "INTENT_ATTACKER_DEAD"
	CodeTargetDead         = "INTENT_TARGET_DEAD"
	CodeInsufficientCE     = "INTENT_INSUFFICIENT_CE"
	CodeAbilityOutOfRange  = "INTENT_ABILITY_OUT_OF_RANGE"
	CodeNotDead            = "INTENT_NOT_DEAD"
	CodeInvalidState       = "INTENT_INVALID_STATE"
)

func rejection(code string) oops.OopsErrorBuilder {
	return oops.In("match").Code(code)
}
