// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package enforcement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/ocwarden/internal/accounts"
	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/metrics"
	"github.com/tomtom215/ocwarden/internal/models"
)

// RunConnectionTick executes one connection-limit pass:
//
//   - sessions whose username never resolved past the daemon's placeholder
//     and that have outlived the grace window are reaped;
//   - for each username over its simultaneous-connection limit the newest
//     sessions (highest session IDs) are disconnected until the count fits,
//     and each disconnected session's source address is banned.
//
// The tick mutates no accounts; it only talks to the daemon and the ban
// manager, so it needs no store commit.
func (e *Engine) RunConnectionTick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues("connection").Observe(time.Since(start).Seconds())
	}()

	sessions, err := e.adapter.ListSessions(ctx)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("connection", "skipped").Inc()
		logging.Warn().Err(err).Msg("Connection tick skipped: session poll failed")
		return fmt.Errorf("connection tick: %w", err)
	}

	now := e.now()
	byUser := make(map[string][]models.Session)
	var reaped, dropped int

	for _, s := range sessions {
		if s.Username == "" || s.Username == e.cfg.UnresolvedMarker {
			// Still authenticating, or the daemon lost the username. Give it
			// the grace window before treating it as stuck.
			if now.Sub(s.ConnectedAt) < e.cfg.UnresolvedGrace {
				continue
			}
			if err := e.adapter.DisconnectSession(ctx, s.ID); err != nil {
				logging.Warn().Err(err).Int("session_id", s.ID).Msg("Reap of unresolved session failed")
				continue
			}
			reaped++
			metrics.SessionsDisconnected.WithLabelValues("stuck_unresolved").Inc()
			ev := newEvent(EventSessionDisconnected, now)
			ev.SessionID = s.ID
			ev.Address = s.ClientAddr
			ev.Reason = "stuck_unresolved"
			e.events.Publish(ev)
			continue
		}
		byUser[s.Username] = append(byUser[s.Username], s)
	}

	for username, userSessions := range byUser {
		acct, err := e.store.Get(ctx, username)
		if errors.Is(err, accounts.ErrNotFound) {
			logging.Warn().Str("user", username).Msg("Session for unknown account; skipping limit check")
			continue
		}
		if err != nil {
			logging.Error().Err(err).Str("user", username).Msg("Account lookup failed during connection tick")
			continue
		}
		if acct.MaxConnections <= 0 {
			continue
		}

		excess := len(userSessions) - acct.MaxConnections
		if excess <= 0 {
			continue
		}

		// Highest session ID means most recently established. The oldest
		// connections keep their seat.
		sort.Slice(userSessions, func(i, j int) bool { return userSessions[i].ID < userSessions[j].ID })
		victims := userSessions[len(userSessions)-excess:]

		for _, victim := range victims {
			if err := e.adapter.DisconnectSession(ctx, victim.ID); err != nil {
				logging.Warn().Err(err).Str("user", username).Int("session_id", victim.ID).
					Msg("Excess-connection disconnect failed")
				continue
			}
			dropped++
			metrics.SessionsDisconnected.WithLabelValues("excess_connections").Inc()
			logging.Info().Str("user", username).Int("session_id", victim.ID).
				Str("address", victim.ClientAddr).Int("limit", acct.MaxConnections).
				Msg("Excess connection disconnected")

			ev := newEvent(EventSessionDisconnected, now)
			ev.Username = username
			ev.SessionID = victim.ID
			ev.Address = victim.ClientAddr
			ev.Reason = models.BanReasonExcessConnections
			e.events.Publish(ev)

			if victim.ClientAddr == "" {
				continue
			}
			e.bans.Ban(victim.ClientAddr, username, e.cfg.BanDuration, models.BanReasonExcessConnections)
			bev := newEvent(EventAddressBanned, now)
			bev.Username = username
			bev.Address = victim.ClientAddr
			bev.Reason = models.BanReasonExcessConnections
			e.events.Publish(bev)
		}
	}

	metrics.TicksTotal.WithLabelValues("connection", "ok").Inc()
	if reaped > 0 || dropped > 0 {
		logging.Info().Int("reaped", reaped).Int("dropped", dropped).Msg("Connection tick enforced limits")
	}
	return nil
}
