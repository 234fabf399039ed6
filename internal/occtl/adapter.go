// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package occtl is the VPN control adapter: the only place that talks to the
// ocserv daemon, through the occtl and ocpasswd binaries. The rest of the
// engine depends solely on the typed Adapter contract here, never on raw
// command output.
//
// Every call carries a short context timeout and is paced by a shared rate
// limiter so an enforcement burst cannot flood the daemon's control socket.
// Failures are returned as errors, logged and counted at call sites; they
// are never escalated into a crash of the reconciliation loop.
package occtl

import (
	"context"
	"errors"

	"github.com/tomtom215/ocwarden/internal/models"
)

// ErrDaemonUnavailable wraps command failures that indicate the daemon
// itself is unreachable rather than a bad argument.
var ErrDaemonUnavailable = errors.New("occtl: daemon unavailable")

// Adapter exposes session enumeration and session/account control
// primitives. All calls may fail (timeout, non-zero exit, unreachable
// daemon); failure is an error, never a panic.
type Adapter interface {
	// ListSessions enumerates live sessions with their cumulative traffic
	// counters.
	ListSessions(ctx context.Context) ([]models.Session, error)

	// DisconnectSession terminates one session by its daemon-assigned ID.
	DisconnectSession(ctx context.Context, id int) error

	// DisconnectUser terminates every session of the named user.
	DisconnectUser(ctx context.Context, username string) error

	// LockUser disables authentication for the user (ocpasswd -l).
	LockUser(ctx context.Context, username string) error

	// UnlockUser re-enables authentication for the user (ocpasswd -u).
	UnlockUser(ctx context.Context, username string) error

	// Status reports whether the daemon is reachable and its basic state.
	Status(ctx context.Context) (*models.DaemonStatus, error)
}

// CredentialStore manages daemon credentials through ocpasswd. Used by the
// account API when provisioning and removing users; the enforcement engine
// itself never needs it.
type CredentialStore interface {
	AddUser(ctx context.Context, username, password string) error
	DeleteUser(ctx context.Context, username string) error
	SetPassword(ctx context.Context, username, password string) error
}
