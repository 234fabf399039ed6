// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package api

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// healthStatus is the /health payload.
type healthStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	DaemonOnline  bool    `json:"daemon_online"`
}

// HealthLive reports process liveness. Always 200 while the process can
// serve requests at all.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady reports readiness: the account store must answer. The daemon
// being down does not fail readiness, since the API remains useful for
// account administration while the daemon restarts.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if _, err := h.store.List(r.Context()); err != nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "account store unavailable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// Health is the composite health summary for dashboards.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	daemonOnline := false
	if status, err := h.adapter.Status(r.Context()); err == nil && status != nil {
		daemonOnline = status.Online
	}

	rw.Success(healthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(startTime).Seconds(),
		DaemonOnline:  daemonOnline,
	})
}
