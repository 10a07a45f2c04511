// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package match

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// NewID returns a ULID whose random component is drawn from crypto/rand.
// Session and connection ids are handed to clients, so they must not be
// predictable from previously issued ids.
func NewID() ulid.ULID {
	return ulid.MustNew(ulid.Now(), rand.Reader)
}

// ParseID parses a ULID string.
func ParseID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ID").With("id", s).Wrapf(err, "invalid id")
	}
	return id, nil
}
