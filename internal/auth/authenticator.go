// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 16

// Authenticator verifies a connection token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// Claims is the token payload. The profile id travels in the "id" claim.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 tokens and loads the profile they name.
type JWTAuthenticator struct {
	secret           []byte
	profiles         ProfileRepository
	defaultCharacter string
	now              func() time.Time
}

// Option configures a JWTAuthenticator.
type Option func(*JWTAuthenticator)

// WithDefaultCharacter overrides DefaultCharacterID.
func WithDefaultCharacter(id string) Option {
	return func(a *JWTAuthenticator) {
		if id != "" {
			a.defaultCharacter = id
		}
	}
}

// WithClock sets the time source used to check expiry.
func WithClock(now func() time.Time) Option {
	return func(a *JWTAuthenticator) { a.now = now }
}

// NewJWTAuthenticator creates an authenticator.
func NewJWTAuthenticator(secret []byte, profiles ProfileRepository, opts ...Option) (*JWTAuthenticator, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if profiles == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("profile repository is required")
	}
	a := &JWTAuthenticator{
		secret:           secret,
		profiles:         profiles,
		defaultCharacter: DefaultCharacterID,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate verifies token and returns the identity it names.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, oops.Code(CodeNoToken).Errorf("no token")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Identity{}, oops.Code(CodeInvalidToken).Wrapf(err, "invalid token")
	}
	if claims.ID == "" {
		return Identity{}, oops.Code(CodeInvalidToken).Errorf("token has no id claim")
	}

	profile, err := a.profiles.GetProfile(ctx, claims.ID)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, oops.Code(CodeUnknownUser).With("identity_id", claims.ID).Wrap(err)
	}
	if err != nil {
		return Identity{}, oops.Code(CodeProfileLookup).With("identity_id", claims.ID).Wrap(err)
	}

	return Identity{
		ID:          profile.ID,
		DisplayName: profile.Username,
		CharacterID: CharacterFor(profile, a.defaultCharacter),
	}, nil
}
