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
	"github.com/tomtom215/ocwarden/internal/models"
)

// ResetQuota zeroes an account's used traffic on operator request. A
// non-zero newLimit replaces the traffic cap at the same time. An account
// locked for a policy reason is reactivated and unlocked at the daemon,
// mirroring what a scheduled reset would do.
func (e *Engine) ResetQuota(ctx context.Context, username string, newLimit int64) (*models.Account, error) {
	acct, err := e.store.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	now := e.now()
	acct.ResetTraffic(now)
	if newLimit > 0 {
		acct.MaxTraffic = newLimit
	}

	if !acct.IsActive && lockedByPolicy(acct.LockReason) {
		acct.IsActive = true
		acct.LockReason = ""
		if err := e.adapter.UnlockUser(ctx, username); err != nil {
			logging.Warn().Err(err).Str("user", username).Msg("Unlock after manual reset failed")
		} else {
			ev := newEvent(EventAccountUnlocked, now)
			ev.Username = username
			e.events.Publish(ev)
		}
	}

	acct.UpdatedAt = now
	if err := e.store.Put(ctx, acct); err != nil {
		return nil, fmt.Errorf("persist quota reset: %w", err)
	}

	logging.Info().Str("user", username).Int64("new_limit", newLimit).Msg("Quota reset by operator")
	ev := newEvent(EventQuotaReset, now)
	ev.Username = username
	e.events.Publish(ev)
	return acct, nil
}

// ExtendExpiry pushes an account's expiry forward by the given number of
// days. An account locked as expired is reactivated and unlocked once its
// new expiry date lies in the future.
func (e *Engine) ExtendExpiry(ctx context.Context, username string, days int) (*models.Account, error) {
	if days <= 0 {
		return nil, fmt.Errorf("extend expiry: days must be positive, got %d", days)
	}

	acct, err := e.store.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	now := e.now()
	acct.ExtendDays(now, days)
	if err := e.commitExpiryChange(ctx, acct, now); err != nil {
		return nil, err
	}

	logging.Info().Str("user", username).Int("days", days).
		Time("expire_at", *acct.ExpireAt).Msg("Expiry extended by operator")
	return acct, nil
}

// SetExpiry replaces an account's expiry with an absolute date, with the
// same reactivate+unlock side effects as ExtendExpiry. A past date is
// allowed; the account then expires on the next quota tick.
func (e *Engine) SetExpiry(ctx context.Context, username string, expireAt time.Time) (*models.Account, error) {
	acct, err := e.store.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	now := e.now()
	t := expireAt
	acct.ExpireAt = &t
	if err := e.commitExpiryChange(ctx, acct, now); err != nil {
		return nil, err
	}

	logging.Info().Str("user", username).
		Time("expire_at", expireAt).Msg("Expiry set by operator")
	return acct, nil
}

// commitExpiryChange reactivates an expired-locked account whose new expiry
// lies in the future, then persists the account.
func (e *Engine) commitExpiryChange(ctx context.Context, acct *models.Account, now time.Time) error {
	if !acct.IsActive && acct.LockReason == models.LockReasonExpired && !acct.Expired(now) {
		acct.IsActive = true
		acct.LockReason = ""
		if err := e.adapter.UnlockUser(ctx, acct.Username); err != nil {
			logging.Warn().Err(err).Str("user", acct.Username).Msg("Unlock after expiry change failed")
		} else {
			ev := newEvent(EventAccountUnlocked, now)
			ev.Username = acct.Username
			e.events.Publish(ev)
		}
	}

	acct.UpdatedAt = now
	if err := e.store.Put(ctx, acct); err != nil {
		return fmt.Errorf("persist expiry change: %w", err)
	}
	return nil
}

// QuotaStats aggregates account state for the dashboard.
func (e *Engine) QuotaStats(ctx context.Context) (*models.QuotaStats, error) {
	all, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	stats := &models.QuotaStats{TotalUsers: len(all)}
	for _, acct := range all {
		if acct.IsActive {
			stats.ActiveUsers++
		} else {
			stats.InactiveUsers++
		}
		if acct.IsOnline {
			stats.OnlineUsers++
		}
		// Counted independently: an account can be over cap and expired.
		if acct.TrafficExceeded() {
			stats.TrafficExceededUsers++
		}
		if acct.Expired(now) {
			stats.ExpiredUsers++
		}
	}
	return stats, nil
}

// Near-limit alert thresholds. Warning fires at 80% of the cap or three
// days before expiry; critical at 95% or the final day.
const (
	alertTrafficWarning  = 80.0
	alertTrafficCritical = 95.0
	alertExpiryWarning   = 3
	alertExpiryCritical  = 1
)

// NearLimitAlerts returns one alert per account per dimension for active
// accounts approaching their traffic cap or expiry date.
func (e *Engine) NearLimitAlerts(ctx context.Context) ([]models.QuotaAlert, error) {
	all, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	alerts := []models.QuotaAlert{}
	for _, acct := range all {
		if !acct.IsActive {
			continue
		}

		if pct := acct.TrafficPercent(); pct >= alertTrafficWarning {
			severity := models.AlertSeverityWarning
			if pct >= alertTrafficCritical {
				severity = models.AlertSeverityCritical
			}
			alerts = append(alerts, models.QuotaAlert{
				Username: acct.Username,
				Type:     models.AlertTypeTraffic,
				Severity: severity,
				Percent:  pct,
			})
		}

		if days := acct.DaysRemaining(now); days >= 0 && days <= alertExpiryWarning {
			severity := models.AlertSeverityWarning
			if days <= alertExpiryCritical {
				severity = models.AlertSeverityCritical
			}
			alerts = append(alerts, models.QuotaAlert{
				Username: acct.Username,
				Type:     models.AlertTypeExpiry,
				Severity: severity,
				DaysLeft: days,
			})
		}
	}
	return alerts, nil
}
