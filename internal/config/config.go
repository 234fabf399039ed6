// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package config provides layered configuration for OCWarden:
// struct defaults, then an optional YAML file, then environment variables,
// loaded with koanf and validated with go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Database    DatabaseConfig    `koanf:"database"`
	Auth        AuthConfig        `koanf:"auth"`
	Occtl       OcctlConfig       `koanf:"occtl"`
	Enforcement EnforcementConfig `koanf:"enforcement"`
	Banlist     BanlistConfig     `koanf:"banlist"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures the zerolog backend.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig configures the BadgerDB account store.
type DatabaseConfig struct {
	// Path is the Badger data directory. Empty means in-memory (tests).
	Path string `koanf:"path"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCDiscardRatio is Badger's RunValueLogGC discard ratio.
	GCDiscardRatio float64 `koanf:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// AuthConfig configures admin API authentication.
type AuthConfig struct {
	// AdminUsername is the single admin login name.
	AdminUsername string `koanf:"admin_username" validate:"required"`

	// AdminPasswordHash is the bcrypt hash of the admin password.
	AdminPasswordHash string `koanf:"admin_password_hash" validate:"required"`

	// JWTSecret signs API bearer tokens. Must be at least 32 bytes.
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=32"`

	// TokenTTL is the bearer token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`
}

// OcctlConfig configures the VPN control adapter.
type OcctlConfig struct {
	// OcctlPath is the occtl binary used for session control.
	OcctlPath string `koanf:"occtl_path" validate:"required"`

	// OcpasswdPath is the ocpasswd binary used for credential control.
	OcpasswdPath string `koanf:"ocpasswd_path" validate:"required"`

	// PasswdFile is the ocserv password file managed through ocpasswd.
	PasswdFile string `koanf:"passwd_file" validate:"required"`

	// CommandTimeout bounds each daemon command invocation.
	CommandTimeout time.Duration `koanf:"command_timeout"`

	// CommandsPerSecond paces daemon command invocations so an enforcement
	// burst cannot starve the daemon's control socket.
	CommandsPerSecond float64 `koanf:"commands_per_second" validate:"gt=0"`
}

// EnforcementConfig configures the reconciliation engine.
type EnforcementConfig struct {
	// QuotaInterval is the quota tick period (reset, delta, expiry, cap).
	QuotaInterval time.Duration `koanf:"quota_interval" validate:"required"`

	// ConnectionInterval is the connection-limit tick period.
	ConnectionInterval time.Duration `koanf:"connection_interval" validate:"required"`

	// BanDuration is the temporary ban applied to excess connections.
	BanDuration time.Duration `koanf:"ban_duration" validate:"required"`

	// UnresolvedMarker is the username the daemon reports for sessions that
	// never completed authentication.
	UnresolvedMarker string `koanf:"unresolved_marker"`

	// UnresolvedGrace is how long an unresolved session may linger before it
	// is reaped as stuck.
	UnresolvedGrace time.Duration `koanf:"unresolved_grace" validate:"required"`
}

// BanlistConfig configures the durable denylist consumed by the VPN stack.
type BanlistConfig struct {
	// DenylistPath is the newline-delimited address file. The format is a
	// hard external constraint: one address per line, no comments.
	DenylistPath string `koanf:"denylist_path" validate:"required"`

	// RestoreOnStart adopts addresses already present in the denylist file
	// at startup, re-arming them with BanDuration.
	RestoreOnStart bool `koanf:"restore_on_start"`
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Enforcement.QuotaInterval < time.Second {
		return fmt.Errorf("enforcement.quota_interval %s is below 1s", c.Enforcement.QuotaInterval)
	}
	if c.Enforcement.ConnectionInterval < time.Second {
		return fmt.Errorf("enforcement.connection_interval %s is below 1s", c.Enforcement.ConnectionInterval)
	}
	return nil
}
