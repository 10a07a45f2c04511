// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package store persists player profiles for identity lookup and reward
// credits. PostgreSQL is the production backend; SQLite and an in-memory
// map serve single-node development and tests.
package store
