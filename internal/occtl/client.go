// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package occtl

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tomtom215/ocwarden/internal/config"
	"github.com/tomtom215/ocwarden/internal/models"
)

// Client implements Adapter and CredentialStore by invoking occtl and
// ocpasswd. occtl's JSON output mode (-j) is used for session enumeration so
// no positional text parsing leaks past this boundary.
type Client struct {
	occtlPath    string
	ocpasswdPath string
	passwdFile   string
	runner       commandRunner
}

// NewClient builds the daemon client from configuration. It verifies the
// control binaries exist: a missing binary is a startup-time
// misconfiguration and the only class of adapter failure treated as fatal.
func NewClient(cfg config.OcctlConfig) (*Client, error) {
	for _, bin := range []string{cfg.OcctlPath, cfg.OcpasswdPath} {
		if _, err := os.Stat(bin); err != nil {
			return nil, fmt.Errorf("control binary %s: %w", bin, err)
		}
	}
	return &Client{
		occtlPath:    cfg.OcctlPath,
		ocpasswdPath: cfg.OcpasswdPath,
		passwdFile:   cfg.PasswdFile,
		runner:       newExecRunner(cfg.CommandTimeout, cfg.CommandsPerSecond),
	}, nil
}

// ListSessions runs `occtl -j show users` and parses the JSON session list.
func (c *Client) ListSessions(ctx context.Context) ([]models.Session, error) {
	out, err := c.runner.run(ctx, "show_users", c.occtlPath, nil, "-j", "show", "users")
	if err != nil {
		return nil, err
	}
	sessions, err := parseSessions(out)
	if err != nil {
		return nil, fmt.Errorf("parse session list: %w", err)
	}
	return sessions, nil
}

// DisconnectSession runs `occtl disconnect id <id>`.
func (c *Client) DisconnectSession(ctx context.Context, id int) error {
	_, err := c.runner.run(ctx, "disconnect_id", c.occtlPath, nil,
		"disconnect", "id", strconv.Itoa(id))
	return err
}

// DisconnectUser runs `occtl disconnect user <name>`.
func (c *Client) DisconnectUser(ctx context.Context, username string) error {
	_, err := c.runner.run(ctx, "disconnect_user", c.occtlPath, nil,
		"disconnect", "user", username)
	return err
}

// LockUser runs `ocpasswd -c <file> -l <name>`.
func (c *Client) LockUser(ctx context.Context, username string) error {
	_, err := c.runner.run(ctx, "lock_user", c.ocpasswdPath, nil,
		"-c", c.passwdFile, "-l", username)
	return err
}

// UnlockUser runs `ocpasswd -c <file> -u <name>`.
func (c *Client) UnlockUser(ctx context.Context, username string) error {
	_, err := c.runner.run(ctx, "unlock_user", c.ocpasswdPath, nil,
		"-c", c.passwdFile, "-u", username)
	return err
}

// Status runs `occtl show status` and parses the key: value output.
func (c *Client) Status(ctx context.Context) (*models.DaemonStatus, error) {
	out, err := c.runner.run(ctx, "show_status", c.occtlPath, nil, "show", "status")
	if err != nil {
		return &models.DaemonStatus{Online: false}, err
	}
	return parseStatus(out), nil
}

// AddUser provisions daemon credentials for a new user. ocpasswd reads the
// password twice from stdin (entry and confirmation).
func (c *Client) AddUser(ctx context.Context, username, password string) error {
	stdin := strings.NewReader(password + "\n" + password + "\n")
	_, err := c.runner.run(ctx, "add_user", c.ocpasswdPath, stdin,
		"-c", c.passwdFile, username)
	return err
}

// DeleteUser removes the user's daemon credentials.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	_, err := c.runner.run(ctx, "delete_user", c.ocpasswdPath, nil,
		"-c", c.passwdFile, "-d", username)
	return err
}

// SetPassword replaces the user's password. ocpasswd has no in-place update,
// so this re-adds the entry, which overwrites it.
func (c *Client) SetPassword(ctx context.Context, username, password string) error {
	return c.AddUser(ctx, username, password)
}
