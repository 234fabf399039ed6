// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package banlist implements the temporary ban manager: time-boxed blocks on
// client addresses, backed by an in-memory record set and a durable
// newline-delimited denylist file consumed by the VPN stack's own
// connect-script filtering.
//
// Invariant: while a ban is un-expired, its address is present in both the
// record set and the denylist file. The one tolerated divergence is a failed
// file write, which keeps the in-memory record and is surfaced as a warning
// so intent stays visible even when network-layer enforcement did not take
// effect.
package banlist

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/metrics"
	"github.com/tomtom215/ocwarden/internal/models"
)

// Manager owns the ban record set. It is constructed once and passed by
// handle into the enforcement engine and the API layer; there is no ambient
// global state, so tests can build as many managers as they need.
type Manager struct {
	mu      sync.Mutex
	records map[string]*models.BanRecord
	timers  map[string]*time.Timer
	file    *denylistFile

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewManager creates a ban manager writing to the given denylist file.
func NewManager(denylistPath string) *Manager {
	return &Manager{
		records: make(map[string]*models.BanRecord),
		timers:  make(map[string]*time.Timer),
		file:    &denylistFile{path: denylistPath},
		now:     time.Now,
	}
}

// SetClock replaces the manager's clock. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Ban records a time-boxed block on an address and schedules its automatic
// lifting. Re-banning an already-banned address overwrites the record and
// re-arms the timer. The username is informational only.
//
// A denylist write failure does not fail the ban: the in-memory record is
// kept so ListActive stays consistent with intent, and the divergence is
// logged as a warning.
func (m *Manager) Ban(address, username string, duration time.Duration, reason string) error {
	if address == "" {
		return fmt.Errorf("ban: empty address")
	}
	if duration <= 0 {
		return fmt.Errorf("ban: non-positive duration %s", duration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.records[address] = &models.BanRecord{
		Address:   address,
		Username:  username,
		Reason:    reason,
		BlockedAt: now,
		UnblockAt: now.Add(duration),
	}

	if err := m.file.add(address); err != nil {
		metrics.DenylistWriteErrors.Inc()
		logging.Warn().Err(err).Str("address", address).
			Msg("Denylist write failed; ban recorded in memory only")
	}

	if t, ok := m.timers[address]; ok {
		t.Stop()
	}
	m.timers[address] = time.AfterFunc(duration, func() {
		m.Unban(address)
	})

	metrics.BansTotal.WithLabelValues(reason).Inc()
	metrics.BansActive.Set(float64(len(m.records)))

	logging.Info().Str("address", address).Str("user", username).
		Dur("duration", duration).Str("reason", reason).Msg("Address banned")
	return nil
}

// Unban lifts a ban, whether placed manually or by the scheduler. Unbanning
// an address with no record is a no-op; the return value reports whether a
// record was actually removed.
func (m *Manager) Unban(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unbanLocked(address)
}

func (m *Manager) unbanLocked(address string) bool {
	_, exists := m.records[address]

	// The denylist entry is removed even without a record, so a manual
	// unban can repair a file left behind by an earlier process.
	if err := m.file.remove(address); err != nil {
		metrics.DenylistWriteErrors.Inc()
		logging.Warn().Err(err).Str("address", address).Msg("Denylist removal failed")
	}

	if !exists {
		return false
	}

	delete(m.records, address)
	if t, ok := m.timers[address]; ok {
		t.Stop()
		delete(m.timers, address)
	}
	metrics.BansActive.Set(float64(len(m.records)))
	logging.Info().Str("address", address).Msg("Address unbanned")
	return true
}

// IsBanned reports whether an un-expired ban exists for the address.
func (m *Manager) IsBanned(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[address]
	return ok && !rec.Expired(m.now())
}

// ListActive returns all un-expired bans with their remaining time. Expired
// records encountered during the scan are pruned immediately rather than
// waiting for their timer callback, so an expired ban is never surfaced.
func (m *Manager) ListActive() []models.BanView {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]models.BanView, 0, len(m.records))
	for addr, rec := range m.records {
		if rec.Expired(now) {
			m.unbanLocked(addr)
			continue
		}
		out = append(out, models.BanView{
			Address:          rec.Address,
			Username:         rec.Username,
			Reason:           rec.Reason,
			BlockedAt:        rec.BlockedAt,
			UnblockAt:        rec.UnblockAt,
			RemainingSeconds: int64(rec.Remaining(now).Seconds()),
		})
	}
	return out
}

// Restore adopts addresses already present in the denylist file, re-arming
// each with the given duration. Called once at startup so a restart does not
// leave the traffic path blocking addresses this manager knows nothing
// about. Returns the number of adopted addresses.
func (m *Manager) Restore(duration time.Duration) (int, error) {
	addrs, err := m.file.readAll()
	if err != nil {
		return 0, fmt.Errorf("restore denylist: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	adopted := 0
	for _, addr := range addrs {
		if _, ok := m.records[addr]; ok {
			continue
		}
		m.records[addr] = &models.BanRecord{
			Address:   addr,
			Reason:    models.BanReasonRestored,
			BlockedAt: now,
			UnblockAt: now.Add(duration),
		}
		a := addr
		m.timers[addr] = time.AfterFunc(duration, func() {
			m.Unban(a)
		})
		adopted++
	}
	metrics.BansActive.Set(float64(len(m.records)))
	if adopted > 0 {
		logging.Info().Int("count", adopted).Msg("Restored bans from denylist file")
	}
	return adopted, nil
}

// Close stops all scheduled unban timers. Records and denylist entries are
// left in place for the next process to restore.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for addr, t := range m.timers {
		t.Stop()
		delete(m.timers, addr)
	}
}
