// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package banlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/ocwarden/internal/models"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocked_ips.txt")
	m := NewManager(path)
	t.Cleanup(m.Close)
	return m, path
}

func fileAddresses(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read denylist: %v", err)
	}
	var addrs []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			addrs = append(addrs, line)
		}
	}
	return addrs
}

func TestBanWritesRecordAndFile(t *testing.T) {
	m, path := newTestManager(t)

	if err := m.Ban("203.0.113.7", "alice", time.Hour, models.BanReasonExcessConnections); err != nil {
		t.Fatalf("Ban: %v", err)
	}

	if !m.IsBanned("203.0.113.7") {
		t.Error("address not banned")
	}
	if got := fileAddresses(t, path); len(got) != 1 || got[0] != "203.0.113.7" {
		t.Errorf("denylist = %v, want [203.0.113.7]", got)
	}

	active := m.ListActive()
	if len(active) != 1 {
		t.Fatalf("active bans = %d, want 1", len(active))
	}
	if active[0].Username != "alice" || active[0].Reason != models.BanReasonExcessConnections {
		t.Errorf("ban view = %+v", active[0])
	}
	if active[0].RemainingSeconds <= 0 || active[0].RemainingSeconds > 3600 {
		t.Errorf("remaining = %ds, want within (0, 3600]", active[0].RemainingSeconds)
	}
}

func TestBanValidation(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Ban("", "alice", time.Hour, "x"); err == nil {
		t.Error("empty address accepted")
	}
	if err := m.Ban("203.0.113.7", "alice", 0, "x"); err == nil {
		t.Error("zero duration accepted")
	}
	if err := m.Ban("203.0.113.7", "alice", -time.Hour, "x"); err == nil {
		t.Error("negative duration accepted")
	}
}

func TestRebanOverwritesRecord(t *testing.T) {
	m, path := newTestManager(t)

	fixed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return fixed })

	if err := m.Ban("203.0.113.7", "alice", time.Hour, "first"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if err := m.Ban("203.0.113.7", "bob", 2*time.Hour, "second"); err != nil {
		t.Fatalf("re-Ban: %v", err)
	}

	active := m.ListActive()
	if len(active) != 1 {
		t.Fatalf("active bans = %d, want 1", len(active))
	}
	if active[0].Username != "bob" || active[0].Reason != "second" {
		t.Errorf("record not overwritten: %+v", active[0])
	}
	if want := fixed.Add(2 * time.Hour); !active[0].UnblockAt.Equal(want) {
		t.Errorf("unblock at = %v, want %v", active[0].UnblockAt, want)
	}
	if got := fileAddresses(t, path); len(got) != 1 {
		t.Errorf("denylist duplicated on re-ban: %v", got)
	}
}

func TestUnban(t *testing.T) {
	m, path := newTestManager(t)

	if err := m.Ban("203.0.113.7", "alice", time.Hour, "x"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if !m.Unban("203.0.113.7") {
		t.Error("Unban returned false for a banned address")
	}
	if m.IsBanned("203.0.113.7") {
		t.Error("still banned after unban")
	}
	if got := fileAddresses(t, path); len(got) != 0 {
		t.Errorf("denylist = %v, want empty", got)
	}

	// Unbanning again is a no-op.
	if m.Unban("203.0.113.7") {
		t.Error("second Unban returned true")
	}
}

func TestListActivePrunesExpired(t *testing.T) {
	m, path := newTestManager(t)

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	if err := m.Ban("203.0.113.7", "alice", time.Hour, "x"); err != nil {
		t.Fatalf("Ban: %v", err)
	}

	// Move the clock past the ban's expiry before the wall-clock timer fires.
	now = now.Add(2 * time.Hour)
	m.SetClock(func() time.Time { return now })

	if m.IsBanned("203.0.113.7") {
		t.Error("expired ban still reported banned")
	}
	if active := m.ListActive(); len(active) != 0 {
		t.Fatalf("active bans = %+v, want none", active)
	}
	// The lazy prune also removed the file entry.
	if got := fileAddresses(t, path); len(got) != 0 {
		t.Errorf("denylist = %v, want empty", got)
	}
}

func TestRestoreAdoptsFileEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocked_ips.txt")
	content := "203.0.113.1\n203.0.113.2\n\n203.0.113.1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed denylist: %v", err)
	}

	m := NewManager(path)
	t.Cleanup(m.Close)

	adopted, err := m.Restore(time.Hour)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if adopted != 2 {
		t.Fatalf("adopted = %d, want 2 (duplicates collapse)", adopted)
	}
	for _, addr := range []string{"203.0.113.1", "203.0.113.2"} {
		if !m.IsBanned(addr) {
			t.Errorf("%s not adopted", addr)
		}
	}
	for _, b := range m.ListActive() {
		if b.Reason != models.BanReasonRestored {
			t.Errorf("adopted ban reason = %q, want %q", b.Reason, models.BanReasonRestored)
		}
	}
}

func TestRestoreMissingFileIsEmpty(t *testing.T) {
	m, _ := newTestManager(t)
	adopted, err := m.Restore(time.Hour)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if adopted != 0 {
		t.Fatalf("adopted = %d, want 0", adopted)
	}
}

func TestBanSurvivesDenylistWriteFailure(t *testing.T) {
	// Point the denylist at a directory so every file write fails. The ban
	// must still be recorded in memory.
	dir := t.TempDir()
	m := NewManager(dir)
	t.Cleanup(m.Close)

	if err := m.Ban("203.0.113.7", "alice", time.Hour, "x"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if !m.IsBanned("203.0.113.7") {
		t.Error("ban lost to denylist write failure")
	}
}

func TestTimerLiftsBan(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Ban("203.0.113.7", "alice", 20*time.Millisecond, "x"); err != nil {
		t.Fatalf("Ban: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.IsBanned("203.0.113.7") {
		if time.Now().After(deadline) {
			t.Fatal("timer did not lift the ban")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
