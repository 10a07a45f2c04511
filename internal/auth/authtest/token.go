// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package authtest signs identity tokens for tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/gachafight/arena/internal/auth"
)

// Secret is a signing key long enough for auth.NewJWTAuthenticator.
var Secret = []byte("test-secret-0123456789abcdef")

// Token signs an HS256 token for id with Secret, valid for an hour.
func Token(t testing.TB, id string) string {
	t.Helper()
	return Sign(t, Secret, auth.Claims{
		ID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
}

// Sign signs claims with secret using HS256.
func Sign(t testing.TB, secret []byte, claims auth.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}
