// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package models

// QuotaStats is the aggregate account state exposed to the API layer.
type QuotaStats struct {
	TotalUsers           int `json:"total_users"`
	ActiveUsers          int `json:"active_users"`
	OnlineUsers          int `json:"online_users"`
	ExpiredUsers         int `json:"expired_users"`
	TrafficExceededUsers int `json:"traffic_exceeded_users"`
	InactiveUsers        int `json:"inactive_users"`
}

// Alert severities for near-limit warnings.
const (
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"
)

// Alert types.
const (
	AlertTypeTraffic = "traffic"
	AlertTypeExpiry  = "expiry"
)

// QuotaAlert flags an account approaching its traffic cap or expiry date.
type QuotaAlert struct {
	Username string  `json:"username"`
	Type     string  `json:"type"`
	Severity string  `json:"severity"`
	Percent  float64 `json:"percent,omitempty"`
	DaysLeft int     `json:"days_left,omitempty"`
}
