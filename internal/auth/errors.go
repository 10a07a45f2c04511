// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes returned by Authenticate.
const (
	CodeNoToken       = "AUTH_NO_TOKEN"
	CodeInvalidToken  = "AUTH_INVALID_TOKEN"
	CodeUnknownUser   = "AUTH_UNKNOWN_USER"
	CodeProfileLookup = "AUTH_PROFILE_LOOKUP_FAILED"
)
