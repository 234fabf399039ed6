// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package enforcement implements the usage enforcement engine: the periodic
// reconciliation of live session state against per-account policy.
//
// Two independent tasks share the engine:
//
//   - the quota tick applies scheduled resets, attributes traffic deltas,
//     and locks accounts that exceeded their cap or expiry;
//   - the connection tick disconnects excess simultaneous connections
//     (newest first) and reaps stuck unauthenticated sessions.
//
// Each task serializes with itself; the two may interleave. The traffic
// tracker is only touched by the quota tick and the ban manager only by the
// connection tick, so the engine needs no internal locking.
//
// Enforcement is best-effort and cooperative: a failed daemon call is
// logged and retried naturally on the next tick because the offending
// condition persists. Only the per-tick account-store commit is atomic.
package enforcement

import (
	"time"

	"github.com/tomtom215/ocwarden/internal/accounts"
	"github.com/tomtom215/ocwarden/internal/banlist"
	"github.com/tomtom215/ocwarden/internal/config"
	"github.com/tomtom215/ocwarden/internal/occtl"
)

// Engine reconciles session state against account policy. Construct one per
// process with NewEngine; all collaborators are passed in explicitly so
// tests can build as many engines as they need with fakes.
type Engine struct {
	store   accounts.Store
	adapter occtl.Adapter
	bans    *banlist.Manager
	tracker *TrafficTracker
	events  EventSink
	cfg     config.EnforcementConfig

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewEngine wires an engine from its collaborators. A nil sink discards
// events.
func NewEngine(store accounts.Store, adapter occtl.Adapter, bans *banlist.Manager, sink EventSink, cfg config.EnforcementConfig) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	if cfg.UnresolvedMarker == "" {
		cfg.UnresolvedMarker = "(none)"
	}
	return &Engine{
		store:   store,
		adapter: adapter,
		bans:    bans,
		tracker: NewTrafficTracker(),
		events:  sink,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetClock replaces the engine's clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Bans returns the engine's ban manager handle for the API layer.
func (e *Engine) Bans() *banlist.Manager {
	return e.bans
}

// onlineInfo aggregates the live sessions of one username within a poll.
type onlineInfo struct {
	count int
	rx    int64
	tx    int64
}
