// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validEnv sets the variables without which Validate fails, so tests can
// exercise Load end to end.
func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuvwxyz012345678901234567890123456")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8181 {
		t.Errorf("Server.Port = %d, want 8181", cfg.Server.Port)
	}
	if cfg.Enforcement.QuotaInterval != 60*time.Second {
		t.Errorf("QuotaInterval = %v, want 60s", cfg.Enforcement.QuotaInterval)
	}
	if cfg.Enforcement.ConnectionInterval != 30*time.Second {
		t.Errorf("ConnectionInterval = %v, want 30s", cfg.Enforcement.ConnectionInterval)
	}
	if cfg.Enforcement.BanDuration != 24*time.Hour {
		t.Errorf("BanDuration = %v, want 24h", cfg.Enforcement.BanDuration)
	}
	if cfg.Enforcement.UnresolvedMarker != "(none)" {
		t.Errorf("UnresolvedMarker = %q, want (none)", cfg.Enforcement.UnresolvedMarker)
	}
	if cfg.Enforcement.UnresolvedGrace != 120*time.Second {
		t.Errorf("UnresolvedGrace = %v, want 120s", cfg.Enforcement.UnresolvedGrace)
	}
	if cfg.Banlist.DenylistPath != "/etc/ocserv/blocked_ips.txt" {
		t.Errorf("DenylistPath = %q", cfg.Banlist.DenylistPath)
	}
	if !cfg.Banlist.RestoreOnStart {
		t.Error("RestoreOnStart should default to true")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	validEnv(t)
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("QUOTA_INTERVAL", "2m")
	t.Setenv("BLOCKED_IPS_FILE", "/tmp/deny.txt")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Enforcement.QuotaInterval != 2*time.Minute {
		t.Errorf("QuotaInterval = %v, want 2m", cfg.Enforcement.QuotaInterval)
	}
	if cfg.Banlist.DenylistPath != "/tmp/deny.txt" {
		t.Errorf("DenylistPath = %q", cfg.Banlist.DenylistPath)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	validEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "server:\n  port: 7443\nenforcement:\n  ban_duration: 48h\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7443 {
		t.Errorf("Server.Port = %d, want 7443", cfg.Server.Port)
	}
	if cfg.Enforcement.BanDuration != 48*time.Hour {
		t.Errorf("BanDuration = %v, want 48h", cfg.Enforcement.BanDuration)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	validEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7443\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want env override 9000", cfg.Server.Port)
	}
}

func TestUnmappedEnvVarsAreIgnored(t *testing.T) {
	validEnv(t)
	t.Setenv("PORT", "1")
	t.Setenv("PATH_LIKE_NOISE", "whatever")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("Server.Port = %d, unmapped variable leaked in", cfg.Server.Port)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"missing password hash", func(c *Config) { c.Auth.AdminPasswordHash = "" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"sub-second quota interval", func(c *Config) { c.Enforcement.QuotaInterval = 200 * time.Millisecond }},
		{"sub-second connection interval", func(c *Config) { c.Enforcement.ConnectionInterval = 10 * time.Millisecond }},
		{"gc ratio too high", func(c *Config) { c.Database.GCDiscardRatio = 1.5 }},
		{"empty denylist path", func(c *Config) { c.Banlist.DenylistPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.AdminPasswordHash = "$2a$10$hash"
			cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted bad config")
			}
		})
	}
}
