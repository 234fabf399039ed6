// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package api

import (
	"net/http"

	"github.com/tomtom215/ocwarden/internal/accounts"
	"github.com/tomtom215/ocwarden/internal/auth"
	"github.com/tomtom215/ocwarden/internal/banlist"
	"github.com/tomtom215/ocwarden/internal/enforcement"
	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/occtl"
)

// Handler carries the collaborators every endpoint draws on.
type Handler struct {
	store   accounts.Store
	engine  *enforcement.Engine
	adapter occtl.Adapter
	creds   occtl.CredentialStore
	bans    *banlist.Manager
	auth    *auth.Authenticator
}

// NewHandler wires the API handler set.
func NewHandler(store accounts.Store, engine *enforcement.Engine, adapter occtl.Adapter, creds occtl.CredentialStore, bans *banlist.Manager, authenticator *auth.Authenticator) *Handler {
	return &Handler{
		store:   store,
		engine:  engine,
		adapter: adapter,
		creds:   creds,
		bans:    bans,
		auth:    authenticator,
	}
}

// Login checks admin credentials and issues a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req LoginRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	token, expiresAt, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Str("user", req.Username).Msg("Failed admin login attempt")
		rw.Unauthorized("invalid credentials")
		return
	}

	logging.Ctx(r.Context()).Info().Str("user", req.Username).Msg("Admin login")
	rw.Success(LoginResponse{Token: token, ExpiresAt: expiresAt})
}
