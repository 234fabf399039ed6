// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package auth implements admin authentication for the API: a bcrypt-checked
// login that issues short-lived HS256 bearer tokens, and the middleware that
// verifies them. There is one admin principal; per-operator RBAC is out of
// scope for a single-concentrator panel.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/ocwarden/internal/config"
)

// ErrInvalidCredentials is returned for a wrong username or password. The
// two cases are deliberately indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInvalidToken is returned for expired, malformed, or mis-signed tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

const defaultTokenTTL = 12 * time.Hour

// Claims are the JWT claims carried by an admin bearer token.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator verifies admin credentials and issues bearer tokens.
type Authenticator struct {
	username     string
	passwordHash string
	secret       []byte
	tokenTTL     time.Duration
	now          func() time.Time
}

// NewAuthenticator builds an authenticator from configuration.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Authenticator{
		username:     cfg.AdminUsername,
		passwordHash: cfg.AdminPasswordHash,
		secret:       []byte(cfg.JWTSecret),
		tokenTTL:     ttl,
		now:          time.Now,
	}
}

// Login checks the credentials and returns a signed bearer token with its
// expiry. bcrypt comparison runs even for a wrong username so both failure
// paths cost the same.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	hash := a.passwordHash
	if username != a.username {
		// Burn a comparison against the real hash anyway.
		username = ""
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil || username == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.issue(username)
}

func (a *Authenticator) issue(username string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "ocwarden",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses and validates a bearer token, returning its claims.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("ocwarden"),
		jwt.WithTimeFunc(func() time.Time { return a.now() }),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword produces a bcrypt hash for the admin password. Used by the
// hashpw CLI helper to generate the config value.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
