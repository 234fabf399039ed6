// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package models

import "time"

// Ban reasons.
const (
	BanReasonExcessConnections = "excess_connections"
	BanReasonRestored          = "restored"
)

// BanRecord is a time-boxed block on a client network address.
//
// A record exists in memory and, while un-expired, its address must also be
// present in the durable denylist file consumed by the VPN stack. Username
// is informational only; the ban is keyed by address and independent of
// account state.
type BanRecord struct {
	Address   string    `json:"address"`
	Username  string    `json:"username,omitempty"`
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"blocked_at"`
	UnblockAt time.Time `json:"unblock_at"`
}

// Expired reports whether the ban window has elapsed.
func (b *BanRecord) Expired(now time.Time) bool {
	return !now.Before(b.UnblockAt)
}

// Remaining returns the time left on the ban, floored at zero.
func (b *BanRecord) Remaining(now time.Time) time.Duration {
	if r := b.UnblockAt.Sub(now); r > 0 {
		return r
	}
	return 0
}

// BanView is the API representation of a ban, with the remaining TTL
// precomputed so clients need no clock agreement with the server.
type BanView struct {
	Address          string    `json:"address"`
	Username         string    `json:"username,omitempty"`
	Reason           string    `json:"reason"`
	BlockedAt        time.Time `json:"blocked_at"`
	UnblockAt        time.Time `json:"unblock_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}
