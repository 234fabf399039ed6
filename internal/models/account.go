// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package models

import "time"

// Lock reasons recorded on an account when enforcement deactivates it.
// TrafficExceeded takes precedence over Expired when both hold in the same
// tick; the order is fixed so compliance reporting stays deterministic.
const (
	LockReasonTrafficExceeded = "traffic_exceeded"
	LockReasonExpired         = "expired"
)

// Account is a VPN end-user's policy record.
//
// Quota fields use bytes throughout. MaxTraffic == 0 means unlimited,
// ResetPeriodDays == 0 means the quota never auto-resets, a nil ExpireAt
// means the account never expires.
//
// IsOnline and CurrentConnections are derived: they are refreshed from the
// live session list on every quota tick and must not be edited through the
// API.
type Account struct {
	Username string `json:"username" validate:"required,min=1,max=64"`

	// Quota state
	MaxTraffic      int64      `json:"max_traffic"`
	UsedTraffic     int64      `json:"used_traffic"`
	ResetPeriodDays int        `json:"reset_period_days"`
	LastResetAt     *time.Time `json:"last_reset_at,omitempty"`

	// Temporal state
	ExpireAt *time.Time `json:"expire_at,omitempty"`

	// Concurrency policy
	MaxConnections int `json:"max_connections" validate:"min=1"`

	// Runtime state
	IsActive           bool   `json:"is_active"`
	IsOnline           bool   `json:"is_online"`
	CurrentConnections int    `json:"current_connections"`
	LockReason         string `json:"lock_reason,omitempty"`

	// Bookkeeping
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastConnection   *time.Time `json:"last_connection,omitempty"`
	TotalConnections int64      `json:"total_connections"`
	Note             string     `json:"note,omitempty"`
}

// TrafficExceeded reports whether the account has used up its traffic cap.
func (a *Account) TrafficExceeded() bool {
	if a.MaxTraffic == 0 {
		return false
	}
	return a.UsedTraffic >= a.MaxTraffic
}

// Expired reports whether the account's expiry window has passed.
func (a *Account) Expired(now time.Time) bool {
	if a.ExpireAt == nil {
		return false
	}
	return now.After(*a.ExpireAt)
}

// NeedsReset reports whether a scheduled quota reset is due.
// An account with a reset period but no recorded reset yet is due
// immediately, matching first-activation behavior.
func (a *Account) NeedsReset(now time.Time) bool {
	if a.ResetPeriodDays <= 0 {
		return false
	}
	if a.LastResetAt == nil {
		return true
	}
	next := a.LastResetAt.Add(time.Duration(a.ResetPeriodDays) * 24 * time.Hour)
	return !now.Before(next)
}

// ResetTraffic zeroes the used counter and stamps the reset time.
// This is the only operation allowed to decrease UsedTraffic.
func (a *Account) ResetTraffic(now time.Time) {
	a.UsedTraffic = 0
	t := now
	a.LastResetAt = &t
}

// ExtendDays pushes the expiry date forward by the given number of days.
// An already-expired (or unset) expiry restarts from now rather than
// stacking onto a date in the past.
func (a *Account) ExtendDays(now time.Time, days int) {
	d := time.Duration(days) * 24 * time.Hour
	if a.ExpireAt == nil || a.ExpireAt.Before(now) {
		t := now.Add(d)
		a.ExpireAt = &t
		return
	}
	t := a.ExpireAt.Add(d)
	a.ExpireAt = &t
}

// CanConnect reports whether the account is currently allowed to establish
// new sessions under every policy dimension.
func (a *Account) CanConnect(now time.Time) bool {
	return a.IsActive && !a.Expired(now) && !a.TrafficExceeded()
}

// TrafficRemaining returns the remaining quota in bytes, or -1 for
// unlimited accounts.
func (a *Account) TrafficRemaining() int64 {
	if a.MaxTraffic == 0 {
		return -1
	}
	if r := a.MaxTraffic - a.UsedTraffic; r > 0 {
		return r
	}
	return 0
}

// TrafficPercent returns the used fraction of the cap as a percentage,
// capped at 100. Unlimited accounts report 0.
func (a *Account) TrafficPercent() float64 {
	if a.MaxTraffic == 0 {
		return 0
	}
	p := float64(a.UsedTraffic) / float64(a.MaxTraffic) * 100
	if p > 100 {
		return 100
	}
	return p
}

// DaysRemaining returns whole days until expiry, -1 for accounts without an
// expiry date, 0 once expired.
func (a *Account) DaysRemaining(now time.Time) int {
	if a.ExpireAt == nil {
		return -1
	}
	d := int(a.ExpireAt.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
