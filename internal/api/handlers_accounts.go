// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ocwarden/internal/accounts"
	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/models"
)

// ListAccounts returns all accounts sorted by username.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	all, err := h.store.List(r.Context())
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.SuccessWithCount(all, len(all))
}

// GetAccount returns one account by username.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	acct, err := h.store.Get(r.Context(), chi.URLParam(r, "username"))
	if errors.Is(err, accounts.ErrNotFound) {
		rw.NotFound("account not found")
		return
	}
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(acct)
}

// CreateAccount provisions a new account: daemon credentials through
// ocpasswd, then the policy record. If credential provisioning fails the
// record is not kept, so the store never lists a user the daemon cannot
// authenticate.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateAccountRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	now := time.Now()
	acct := &models.Account{
		Username:        req.Username,
		MaxTraffic:      req.MaxTraffic,
		ResetPeriodDays: req.ResetPeriodDays,
		MaxConnections:  req.MaxConnections,
		IsActive:        true,
		Note:            req.Note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.ExpireDays > 0 {
		expireAt := now.Add(time.Duration(req.ExpireDays) * 24 * time.Hour)
		acct.ExpireAt = &expireAt
	}
	if req.ResetPeriodDays > 0 {
		acct.LastResetAt = &now
	}

	if err := h.store.Create(r.Context(), acct); errors.Is(err, accounts.ErrExists) {
		rw.Conflict("username already exists")
		return
	} else if err != nil {
		rw.StoreError(err)
		return
	}

	if err := h.creds.AddUser(r.Context(), req.Username, req.Password); err != nil {
		if derr := h.store.Delete(r.Context(), req.Username); derr != nil {
			logging.Ctx(r.Context()).Error().Err(derr).Str("user", req.Username).
				Msg("Rollback of account record failed after credential provisioning error")
		}
		rw.DaemonError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("user", req.Username).Msg("Account created")
	rw.Created(acct)
}

// UpdateAccount modifies account policy fields. Toggling is_active also
// locks or unlocks the daemon credentials so the policy takes effect
// immediately instead of on the next tick.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	username := chi.URLParam(r, "username")

	var req UpdateAccountRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	acct, err := h.store.Get(r.Context(), username)
	if errors.Is(err, accounts.ErrNotFound) {
		rw.NotFound("account not found")
		return
	}
	if err != nil {
		rw.StoreError(err)
		return
	}

	if req.MaxTraffic != nil {
		acct.MaxTraffic = *req.MaxTraffic
	}
	if req.ResetPeriodDays != nil {
		acct.ResetPeriodDays = *req.ResetPeriodDays
	}
	if req.ExpireAt != nil {
		t := *req.ExpireAt
		acct.ExpireAt = &t
	}
	if req.MaxConnections != nil {
		acct.MaxConnections = *req.MaxConnections
	}
	if req.Note != nil {
		acct.Note = *req.Note
	}

	if req.IsActive != nil && *req.IsActive != acct.IsActive {
		if *req.IsActive {
			if err := h.adapter.UnlockUser(r.Context(), username); err != nil {
				rw.DaemonError(err)
				return
			}
			acct.IsActive = true
			acct.LockReason = ""
		} else {
			if err := h.adapter.LockUser(r.Context(), username); err != nil {
				rw.DaemonError(err)
				return
			}
			// Best-effort kick; the lock already prevents reconnects.
			if err := h.adapter.DisconnectUser(r.Context(), username); err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Str("user", username).
					Msg("Disconnect after manual deactivation failed")
			}
			acct.IsActive = false
			acct.LockReason = ""
		}
	}

	acct.UpdatedAt = time.Now()
	if err := h.store.Put(r.Context(), acct); err != nil {
		rw.StoreError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("user", username).Msg("Account updated")
	rw.Success(acct)
}

// DeleteAccount removes the account: sessions kicked, daemon credentials
// deleted, policy record removed.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	username := chi.URLParam(r, "username")

	if _, err := h.store.Get(r.Context(), username); errors.Is(err, accounts.ErrNotFound) {
		rw.NotFound("account not found")
		return
	} else if err != nil {
		rw.StoreError(err)
		return
	}

	if err := h.adapter.DisconnectUser(r.Context(), username); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("user", username).
			Msg("Disconnect before account deletion failed")
	}
	if err := h.creds.DeleteUser(r.Context(), username); err != nil {
		rw.DaemonError(err)
		return
	}
	if err := h.store.Delete(r.Context(), username); err != nil && !errors.Is(err, accounts.ErrNotFound) {
		rw.StoreError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("user", username).Msg("Account deleted")
	rw.NoContent()
}

// SetAccountPassword replaces the account's VPN password.
func (h *Handler) SetAccountPassword(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	username := chi.URLParam(r, "username")

	var req SetPasswordRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	if _, err := h.store.Get(r.Context(), username); errors.Is(err, accounts.ErrNotFound) {
		rw.NotFound("account not found")
		return
	} else if err != nil {
		rw.StoreError(err)
		return
	}

	if err := h.creds.SetPassword(r.Context(), username, req.Password); err != nil {
		rw.DaemonError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("user", username).Msg("Account password changed")
	rw.NoContent()
}

// ResetAccountQuota zeroes the used-traffic counter, optionally with a new
// cap, reactivating an account locked for overuse.
func (h *Handler) ResetAccountQuota(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	username := chi.URLParam(r, "username")

	var req ResetQuotaRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	acct, err := h.engine.ResetQuota(r.Context(), username, req.NewLimit)
	if errors.Is(err, accounts.ErrNotFound) {
		rw.NotFound("account not found")
		return
	}
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(acct)
}

// ExtendAccountExpiry changes the expiry date, either forward by whole days
// or to an absolute date, reactivating an account locked as expired.
func (h *Handler) ExtendAccountExpiry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	username := chi.URLParam(r, "username")

	var req ExtendExpiryRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	if (req.Days > 0) == (req.ExpireAt != nil) {
		rw.BadRequest("provide exactly one of days or expire_at")
		return
	}

	var acct *models.Account
	var err error
	if req.ExpireAt != nil {
		acct, err = h.engine.SetExpiry(r.Context(), username, *req.ExpireAt)
	} else {
		acct, err = h.engine.ExtendExpiry(r.Context(), username, req.Days)
	}
	if errors.Is(err, accounts.ErrNotFound) {
		rw.NotFound("account not found")
		return
	}
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(acct)
}

// DisconnectAccount terminates all of the account's live sessions.
func (h *Handler) DisconnectAccount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	username := chi.URLParam(r, "username")

	if _, err := h.store.Get(r.Context(), username); errors.Is(err, accounts.ErrNotFound) {
		rw.NotFound("account not found")
		return
	} else if err != nil {
		rw.StoreError(err)
		return
	}

	if err := h.adapter.DisconnectUser(r.Context(), username); err != nil {
		rw.DaemonError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("user", username).Msg("Account disconnected by operator")
	rw.NoContent()
}
