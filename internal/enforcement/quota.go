// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/metrics"
	"github.com/tomtom215/ocwarden/internal/models"
)

// RunQuotaTick executes one quota reconciliation pass:
//
//  1. poll live sessions and fold them into per-username aggregates;
//  2. for each account, in store iteration order: apply a due scheduled
//     reset (the only path that can automatically resurrect a locked
//     account), attribute the traffic delta, refresh the derived online
//     state, then check cap and expiry; traffic-exceeded takes precedence
//     over expired when both hold;
//  3. issue disconnect+lock exactly once per tick for each account newly
//     locked, and reissue the pair for any account still locked by policy
//     whose session survived an earlier failed disconnect;
//  4. commit every mutated account in one atomic batch, then publish the
//     tick's events.
//
// A session-poll or commit failure skips the whole tick; per-account daemon
// call failures are logged and do not stop the remaining accounts. Events
// are buffered until the commit succeeds so the feed never reports a
// mutation that was rolled back.
func (e *Engine) RunQuotaTick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues("quota").Observe(time.Since(start).Seconds())
	}()

	sessions, err := e.adapter.ListSessions(ctx)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("quota", "skipped").Inc()
		logging.Warn().Err(err).Msg("Quota tick skipped: session poll failed")
		return fmt.Errorf("quota tick: %w", err)
	}

	all, err := e.store.List(ctx)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("quota", "error").Inc()
		return fmt.Errorf("quota tick: %w", err)
	}

	online := make(map[string]onlineInfo)
	for _, s := range sessions {
		if s.Username == "" || s.Username == e.cfg.UnresolvedMarker {
			continue
		}
		info := online[s.Username]
		info.count++
		info.rx += s.RX
		info.tx += s.TX
		online[s.Username] = info
	}

	now := e.now()
	var batch []*models.Account
	var pending []Event
	publish := func(ev Event) { pending = append(pending, ev) }

	for _, acct := range all {
		changed := false

		// Scheduled reset first, so a reset account is evaluated fresh in
		// this same tick.
		if acct.NeedsReset(now) {
			acct.ResetTraffic(now)
			changed = true
			metrics.AccountsReset.Inc()
			logging.Info().Str("user", acct.Username).Msg("Scheduled quota reset applied")

			if !acct.IsActive && lockedByPolicy(acct.LockReason) {
				acct.IsActive = true
				acct.LockReason = ""
				if err := e.adapter.UnlockUser(ctx, acct.Username); err != nil {
					logging.Warn().Err(err).Str("user", acct.Username).Msg("Unlock after reset failed; will retry next tick")
				} else {
					ev := newEvent(EventAccountUnlocked, now)
					ev.Username = acct.Username
					publish(ev)
				}
			}

			ev := newEvent(EventQuotaReset, now)
			ev.Username = acct.Username
			publish(ev)
		}

		info, isOnline := online[acct.Username]

		if isOnline {
			if delta := e.tracker.Observe(acct.Username, info.rx, info.tx); delta > 0 {
				acct.UsedTraffic += delta
				changed = true
				metrics.TrafficAccounted.Add(float64(delta))
			}
		}

		if acct.IsOnline != isOnline || acct.CurrentConnections != info.count {
			if !acct.IsOnline && isOnline {
				t := now
				acct.LastConnection = &t
			}
			acct.IsOnline = isOnline
			acct.CurrentConnections = info.count
			changed = true
		}

		if acct.IsActive {
			reason := ""
			switch {
			case acct.TrafficExceeded():
				reason = models.LockReasonTrafficExceeded
			case acct.Expired(now):
				reason = models.LockReasonExpired
			}

			if reason != "" {
				acct.IsActive = false
				acct.LockReason = reason
				changed = true
				metrics.AccountsLocked.WithLabelValues(reason).Inc()
				logging.Info().Str("user", acct.Username).Str("reason", reason).Msg("Account deactivated")

				if isOnline && e.disconnectAndLock(ctx, acct, now, reason, publish) {
					acct.IsOnline = false
					acct.CurrentConnections = 0
				}
			}
		} else if isOnline && lockedByPolicy(acct.LockReason) {
			// A policy-locked account with a live session means an earlier
			// disconnect failed. The condition persists, so the pair is
			// reissued until the session is gone.
			logging.Warn().Str("user", acct.Username).Str("reason", acct.LockReason).
				Msg("Locked account still has live sessions; reissuing disconnect")
			if e.disconnectAndLock(ctx, acct, now, acct.LockReason, publish) {
				acct.IsOnline = false
				acct.CurrentConnections = 0
				changed = true
			}
		}

		if changed {
			acct.UpdatedAt = now
			batch = append(batch, acct)
		}
	}

	// Evict tracker state for users who went offline so a reconnect is a
	// first observation again.
	onlineSet := make(map[string]struct{}, len(online))
	for username := range online {
		onlineSet[username] = struct{}{}
	}
	e.tracker.Prune(onlineSet)

	if err := e.store.ApplyBatch(ctx, batch); err != nil {
		metrics.TicksTotal.WithLabelValues("quota", "skipped").Inc()
		logging.Error().Err(err).Int("accounts", len(batch)).
			Msg("Quota tick commit failed; all mutations discarded")
		return fmt.Errorf("quota tick commit: %w", err)
	}

	// Events go out only for committed state.
	for _, ev := range pending {
		e.events.Publish(ev)
	}

	metrics.TicksTotal.WithLabelValues("quota", "ok").Inc()
	logging.Debug().Int("accounts", len(all)).Int("mutated", len(batch)).
		Int("online", len(online)).Msg("Quota tick complete")
	return nil
}

// disconnectAndLock issues the disconnect+lock pair for a policy-locked
// account, at most once per tick per account. Each call failure is logged
// independently; the lock is attempted even if the disconnect failed, since
// the daemon retries nothing on our behalf. Reports whether the disconnect
// succeeded, so the caller only marks the account offline when it did.
func (e *Engine) disconnectAndLock(ctx context.Context, acct *models.Account, now time.Time, reason string, publish func(Event)) bool {
	disconnected := false
	if err := e.adapter.DisconnectUser(ctx, acct.Username); err != nil {
		logging.Warn().Err(err).Str("user", acct.Username).Msg("Disconnect failed; will retry next tick")
	} else {
		disconnected = true
		metrics.SessionsDisconnected.WithLabelValues("policy").Inc()
		ev := newEvent(EventSessionDisconnected, now)
		ev.Username = acct.Username
		ev.Reason = reason
		publish(ev)
	}

	if err := e.adapter.LockUser(ctx, acct.Username); err != nil {
		logging.Warn().Err(err).Str("user", acct.Username).Msg("Lock failed; will retry next tick")
	} else {
		ev := newEvent(EventAccountLocked, now)
		ev.Username = acct.Username
		ev.Reason = reason
		publish(ev)
	}
	return disconnected
}

// lockedByPolicy reports whether a lock reason is one the scheduled reset
// path may clear. Manually deactivated accounts (no reason) stay locked.
func lockedByPolicy(reason string) bool {
	return reason == models.LockReasonTrafficExceeded || reason == models.LockReasonExpired
}
