// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/models"
)

// ListSessions returns the live session list straight from the daemon.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sessions, err := h.adapter.ListSessions(r.Context())
	if err != nil {
		rw.DaemonError(err)
		return
	}
	rw.SuccessWithCount(sessions, len(sessions))
}

// DisconnectSession terminates one session by its daemon-assigned ID.
func (h *Handler) DisconnectSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		rw.BadRequest("session id must be a non-negative integer")
		return
	}

	if err := h.adapter.DisconnectSession(r.Context(), id); err != nil {
		rw.DaemonError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Int("session_id", id).Msg("Session disconnected by operator")
	rw.NoContent()
}

// ListBans returns all un-expired temporary bans.
func (h *Handler) ListBans(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	bans := h.bans.ListActive()
	rw.SuccessWithCount(bans, len(bans))
}

// Unban lifts the ban on an address.
func (h *Handler) Unban(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	address := chi.URLParam(r, "address")

	if !h.bans.Unban(address) {
		rw.NotFound("no active ban for address")
		return
	}

	logging.Ctx(r.Context()).Info().Str("address", address).Msg("Ban lifted by operator")
	rw.NoContent()
}

// QuotaStats returns aggregate account state for the dashboard.
func (h *Handler) QuotaStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats, err := h.engine.QuotaStats(r.Context())
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(stats)
}

// QuotaAlerts returns active accounts nearing their traffic cap or expiry.
func (h *Handler) QuotaAlerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	alerts, err := h.engine.NearLimitAlerts(r.Context())
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.SuccessWithCount(alerts, len(alerts))
}

// DaemonStatus reports the VPN daemon's reachability and state.
func (h *Handler) DaemonStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status, err := h.adapter.Status(r.Context())
	if err != nil {
		// An unreachable daemon is a state report, not a request failure.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Daemon status query failed")
		if status == nil {
			status = &models.DaemonStatus{Online: false}
		}
	}
	rw.Success(status)
}
