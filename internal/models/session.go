// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package models

import "time"

// Session is one live VPN connection as reported by the daemon.
//
// Sessions are ephemeral: the engine sources them fresh from the control
// adapter on every tick and never persists them, except for the per-username
// traffic snapshot kept by the delta tracker. The daemon assigns IDs
// monotonically in connection order, so a higher ID is always a newer
// connection; the connection-count limiter relies on that ordering.
type Session struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	ClientAddr   string    `json:"client_addr"`
	InternalAddr string    `json:"internal_addr"`
	ConnectedAt  time.Time `json:"connected_at"`
	RX           int64     `json:"rx"`
	TX           int64     `json:"tx"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

// DaemonStatus is the parsed output of the daemon's status query.
type DaemonStatus struct {
	Online         bool              `json:"online"`
	ActiveSessions int               `json:"active_sessions"`
	Raw            map[string]string `json:"raw,omitempty"`
}
