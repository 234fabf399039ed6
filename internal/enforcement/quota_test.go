// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package enforcement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/ocwarden/internal/models"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func activeAccount(username string, maxTraffic int64) *models.Account {
	return &models.Account{
		Username:       username,
		MaxTraffic:     maxTraffic,
		MaxConnections: 2,
		IsActive:       true,
		CreatedAt:      testNow.Add(-30 * 24 * time.Hour),
	}
}

func TestQuotaTickLocksOnTrafficExceeded(t *testing.T) {
	store := newMemStore(activeAccount("bob", 100))
	adapter := &fakeAdapter{sessions: []models.Session{
		{ID: 7, Username: "bob", ClientAddr: "203.0.113.9", RX: 50, TX: 0, ConnectedAt: testNow.Add(-time.Hour)},
	}}
	sink := &captureSink{}
	e := newTestEngine(t, store, adapter, sink, testNow)

	// First tick establishes the baseline; no traffic attributed yet.
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	got, _ := store.Get(context.Background(), "bob")
	if got.UsedTraffic != 0 {
		t.Fatalf("used after baseline tick = %d, want 0", got.UsedTraffic)
	}
	if !got.IsOnline || got.CurrentConnections != 1 {
		t.Fatalf("online state not refreshed: online=%v count=%d", got.IsOnline, got.CurrentConnections)
	}

	// Counter growth pushes the account past its cap.
	adapter.sessions[0].RX = 130
	adapter.sessions[0].TX = 30
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick 2: %v", err)
	}

	got, _ = store.Get(context.Background(), "bob")
	if got.UsedTraffic != 110 {
		t.Errorf("used = %d, want 110", got.UsedTraffic)
	}
	if got.IsActive {
		t.Error("account still active after exceeding cap")
	}
	if got.LockReason != models.LockReasonTrafficExceeded {
		t.Errorf("lock reason = %q, want %q", got.LockReason, models.LockReasonTrafficExceeded)
	}
	if got.IsOnline {
		t.Error("locked account still marked online")
	}

	if len(adapter.disconnectedUsers) != 1 || adapter.disconnectedUsers[0] != "bob" {
		t.Errorf("disconnected users = %v, want [bob]", adapter.disconnectedUsers)
	}
	if len(adapter.locked) != 1 || adapter.locked[0] != "bob" {
		t.Errorf("locked users = %v, want [bob]", adapter.locked)
	}
	if evs := sink.ofType(EventAccountLocked); len(evs) != 1 || evs[0].Username != "bob" {
		t.Errorf("lock events = %+v, want one for bob", evs)
	}
}

func TestQuotaTickTrafficExceededTakesPrecedenceOverExpired(t *testing.T) {
	expired := testNow.Add(-time.Hour)
	acct := activeAccount("mallory", 100)
	acct.UsedTraffic = 150
	acct.ExpireAt = &expired

	store := newMemStore(acct)
	e := newTestEngine(t, store, &fakeAdapter{}, nil, testNow)
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got, _ := store.Get(context.Background(), "mallory")
	if got.LockReason != models.LockReasonTrafficExceeded {
		t.Fatalf("lock reason = %q, want %q", got.LockReason, models.LockReasonTrafficExceeded)
	}
}

func TestQuotaTickLocksExpired(t *testing.T) {
	expired := testNow.Add(-time.Minute)
	acct := activeAccount("dave", 0)
	acct.ExpireAt = &expired

	store := newMemStore(acct)
	e := newTestEngine(t, store, &fakeAdapter{}, nil, testNow)
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got, _ := store.Get(context.Background(), "dave")
	if got.IsActive || got.LockReason != models.LockReasonExpired {
		t.Fatalf("account = active=%v reason=%q, want locked as expired", got.IsActive, got.LockReason)
	}
}

func TestQuotaTickScheduledResetReactivates(t *testing.T) {
	// Account locked for overuse whose reset period has since elapsed. The
	// reset must zero the counter and resurrect the account, even though it
	// is inactive and offline.
	lastReset := testNow.Add(-31 * 24 * time.Hour)
	acct := activeAccount("carol", 100)
	acct.IsActive = false
	acct.LockReason = models.LockReasonTrafficExceeded
	acct.UsedTraffic = 150
	acct.ResetPeriodDays = 30
	acct.LastResetAt = &lastReset

	store := newMemStore(acct)
	adapter := &fakeAdapter{}
	sink := &captureSink{}
	e := newTestEngine(t, store, adapter, sink, testNow)
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got, _ := store.Get(context.Background(), "carol")
	if got.UsedTraffic != 0 {
		t.Errorf("used = %d, want 0", got.UsedTraffic)
	}
	if !got.IsActive || got.LockReason != "" {
		t.Errorf("account not reactivated: active=%v reason=%q", got.IsActive, got.LockReason)
	}
	if got.LastResetAt == nil || !got.LastResetAt.Equal(testNow) {
		t.Errorf("last reset = %v, want %v", got.LastResetAt, testNow)
	}
	if len(adapter.unlocked) != 1 || adapter.unlocked[0] != "carol" {
		t.Errorf("unlocked = %v, want [carol]", adapter.unlocked)
	}
	if len(sink.ofType(EventQuotaReset)) != 1 {
		t.Error("missing quota reset event")
	}
}

func TestQuotaTickResetDoesNotResurrectManualLock(t *testing.T) {
	lastReset := testNow.Add(-31 * 24 * time.Hour)
	acct := activeAccount("eve", 100)
	acct.IsActive = false
	acct.LockReason = "" // deactivated by an operator
	acct.ResetPeriodDays = 30
	acct.LastResetAt = &lastReset

	store := newMemStore(acct)
	adapter := &fakeAdapter{}
	e := newTestEngine(t, store, adapter, nil, testNow)
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got, _ := store.Get(context.Background(), "eve")
	if got.IsActive {
		t.Error("manually deactivated account resurrected by reset")
	}
	if len(adapter.unlocked) != 0 {
		t.Errorf("unexpected unlock calls: %v", adapter.unlocked)
	}
}

func TestQuotaTickIgnoresUnresolvedSessions(t *testing.T) {
	store := newMemStore(activeAccount("alice", 0))
	adapter := &fakeAdapter{sessions: []models.Session{
		{ID: 1, Username: "(none)", ClientAddr: "198.51.100.2", RX: 999, ConnectedAt: testNow},
	}}
	e := newTestEngine(t, store, adapter, nil, testNow)
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got, _ := store.Get(context.Background(), "alice")
	if got.IsOnline {
		t.Error("unresolved session attributed to an account")
	}
}

func TestQuotaTickSkipsOnSessionPollFailure(t *testing.T) {
	store := newMemStore(activeAccount("bob", 100))
	adapter := &fakeAdapter{listErr: errors.New("socket gone")}
	e := newTestEngine(t, store, adapter, nil, testNow)

	if err := e.RunQuotaTick(context.Background()); err == nil {
		t.Fatal("expected error from failed session poll")
	}
	if len(adapter.disconnectedUsers)+len(adapter.locked) != 0 {
		t.Error("enforcement acted despite poll failure")
	}
}

func TestQuotaTickCommitFailureDiscardsAllMutations(t *testing.T) {
	acct := activeAccount("bob", 100)
	acct.UsedTraffic = 150 // would be locked this tick

	store := newMemStore(acct)
	store.batchErr = errors.New("disk full")
	sink := &captureSink{}
	e := newTestEngine(t, store, &fakeAdapter{}, sink, testNow)

	if err := e.RunQuotaTick(context.Background()); err == nil {
		t.Fatal("expected commit error")
	}
	got, _ := store.Get(context.Background(), "bob")
	if !got.IsActive || got.LockReason != "" {
		t.Fatalf("mutation leaked past failed commit: active=%v reason=%q", got.IsActive, got.LockReason)
	}
	// The feed must not report mutations that were rolled back.
	if len(sink.events) != 0 {
		t.Fatalf("events published despite failed commit: %+v", sink.events)
	}
}

func TestQuotaTickRetriesFailedDisconnect(t *testing.T) {
	acct := activeAccount("bob", 100)
	acct.UsedTraffic = 150

	store := newMemStore(acct)
	adapter := &fakeAdapter{
		sessions: []models.Session{
			{ID: 7, Username: "bob", ClientAddr: "203.0.113.9", RX: 10, ConnectedAt: testNow.Add(-time.Hour)},
		},
		disconnectUserErr: map[string]error{"bob": errors.New("control socket timeout")},
	}
	e := newTestEngine(t, store, adapter, nil, testNow)

	// Tick 1 locks the account but the disconnect fails; the session stays
	// live, and the committed state must still say so.
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	got, _ := store.Get(context.Background(), "bob")
	if got.IsActive || got.LockReason != models.LockReasonTrafficExceeded {
		t.Fatalf("account = active=%v reason=%q, want locked for overuse", got.IsActive, got.LockReason)
	}
	if !got.IsOnline {
		t.Fatal("account marked offline although the disconnect failed")
	}
	if len(adapter.disconnectUserAttempts) != 1 {
		t.Fatalf("disconnect attempts after tick 1 = %d, want 1", len(adapter.disconnectUserAttempts))
	}

	// Tick 2: still inactive, session still live. The disconnect must be
	// reissued, not skipped because the account is already locked.
	delete(adapter.disconnectUserErr, "bob")
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick 2: %v", err)
	}

	if len(adapter.disconnectUserAttempts) != 2 {
		t.Fatalf("disconnect attempts after tick 2 = %d, want 2", len(adapter.disconnectUserAttempts))
	}
	if len(adapter.disconnectedUsers) != 1 || adapter.disconnectedUsers[0] != "bob" {
		t.Fatalf("disconnected users = %v, want [bob]", adapter.disconnectedUsers)
	}
	got, _ = store.Get(context.Background(), "bob")
	if got.IsOnline || got.CurrentConnections != 0 {
		t.Fatalf("account still online after successful retry: online=%v count=%d", got.IsOnline, got.CurrentConnections)
	}
	if got.IsActive {
		t.Fatal("account reactivated by retry")
	}
}

func TestQuotaTickDoesNotRetryDisconnectForManualLock(t *testing.T) {
	// Manually deactivated accounts (no lock reason) are the operator's
	// business; the quota tick leaves their sessions alone.
	acct := activeAccount("eve", 0)
	acct.IsActive = false
	acct.LockReason = ""

	store := newMemStore(acct)
	adapter := &fakeAdapter{sessions: []models.Session{
		{ID: 4, Username: "eve", RX: 10, ConnectedAt: testNow.Add(-time.Hour)},
	}}
	e := newTestEngine(t, store, adapter, nil, testNow)

	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(adapter.disconnectUserAttempts) != 0 {
		t.Fatalf("disconnect attempts = %v, want none", adapter.disconnectUserAttempts)
	}
}

func TestQuotaTickPrunesOfflineTracker(t *testing.T) {
	store := newMemStore(activeAccount("alice", 0))
	adapter := &fakeAdapter{sessions: []models.Session{
		{ID: 3, Username: "alice", RX: 1000, TX: 1000, ConnectedAt: testNow.Add(-time.Hour)},
	}}
	e := newTestEngine(t, store, adapter, nil, testNow)

	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if e.tracker.Tracked() != 1 {
		t.Fatalf("tracked = %d, want 1", e.tracker.Tracked())
	}

	adapter.sessions = nil
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if e.tracker.Tracked() != 0 {
		t.Fatalf("tracked after offline tick = %d, want 0", e.tracker.Tracked())
	}
}

func TestQuotaTickUnlimitedAccountNeverLocks(t *testing.T) {
	store := newMemStore(activeAccount("free", 0))
	adapter := &fakeAdapter{sessions: []models.Session{
		{ID: 1, Username: "free", RX: 10, ConnectedAt: testNow.Add(-time.Hour)},
	}}
	e := newTestEngine(t, store, adapter, nil, testNow)

	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	adapter.sessions[0].RX = 1 << 40
	if err := e.RunQuotaTick(context.Background()); err != nil {
		t.Fatalf("tick 2: %v", err)
	}

	got, _ := store.Get(context.Background(), "free")
	if !got.IsActive {
		t.Fatal("unlimited account locked")
	}
	if got.UsedTraffic != 1<<40-10 {
		t.Fatalf("used = %d, want %d", got.UsedTraffic, int64(1<<40-10))
	}
}
