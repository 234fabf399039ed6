// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package enforcement

// TrafficTracker converts the daemon's absolute per-user byte counters into
// monotonic deltas across polls.
//
// The first observation for a username returns 0: traffic accumulated
// before tracking began (for instance across a panel restart) is never
// attributed to the user. Counter drops, which the daemon produces when a
// session re-negotiates and restarts its counters, are clamped to 0 so a
// delta can never be negative.
//
// The tracker is owned by the reconciliation engine and only ever touched
// from the quota tick, which never runs concurrently with itself, so no
// locking is needed.
type TrafficTracker struct {
	last map[string]trafficSnapshot
}

type trafficSnapshot struct {
	rx, tx int64
}

// NewTrafficTracker creates an empty tracker.
func NewTrafficTracker() *TrafficTracker {
	return &TrafficTracker{last: make(map[string]trafficSnapshot)}
}

// Observe records the latest absolute counters for a username and returns
// the bytes transferred since the previous observation.
func (t *TrafficTracker) Observe(username string, rx, tx int64) int64 {
	prev, seen := t.last[username]
	t.last[username] = trafficSnapshot{rx: rx, tx: tx}
	if !seen {
		return 0
	}

	var delta int64
	if d := rx - prev.rx; d > 0 {
		delta += d
	}
	if d := tx - prev.tx; d > 0 {
		delta += d
	}
	return delta
}

// Prune evicts usernames absent from the current online set, so a later
// reconnect is treated as a first observation again.
func (t *TrafficTracker) Prune(online map[string]struct{}) {
	for username := range t.last {
		if _, ok := online[username]; !ok {
			delete(t.last, username)
		}
	}
}

// Tracked returns the number of usernames currently tracked.
func (t *TrafficTracker) Tracked() int {
	return len(t.last)
}
