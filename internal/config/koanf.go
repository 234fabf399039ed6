// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ocwarden/config.yaml",
	"/etc/ocwarden/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns a Config with all default values. Defaults are applied
// first, then overridden by the config file and environment variables.
//
// The 120s unresolved grace window and the 24h ban duration match the
// daemon-side behavior this panel grew up around; both are tunable because
// neither value is load-bearing.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8181,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     nil,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:           "/data/ocwarden",
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Auth: AuthConfig{
			AdminUsername: "admin",
			TokenTTL:      12 * time.Hour,
		},
		Occtl: OcctlConfig{
			OcctlPath:         "/usr/bin/occtl",
			OcpasswdPath:      "/usr/bin/ocpasswd",
			PasswdFile:        "/etc/ocserv/ocpasswd",
			CommandTimeout:    5 * time.Second,
			CommandsPerSecond: 10,
		},
		Enforcement: EnforcementConfig{
			QuotaInterval:      60 * time.Second,
			ConnectionInterval: 30 * time.Second,
			BanDuration:        24 * time.Hour,
			UnresolvedMarker:   "(none)",
			UnresolvedGrace:    120 * time.Second,
		},
		Banlist: BanlistConfig{
			DenylistPath:   "/etc/ocserv/blocked_ips.txt",
			RestoreOnStart: true,
		},
	}
}

// Load builds the configuration: defaults, then the config file (if any),
// then environment variables, then validation.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped so that random environment
// variables cannot pollute the configuration.
//
// Examples:
//   - HTTP_PORT          -> server.port
//   - OCCTL_PATH         -> occtl.occtl_path
//   - QUOTA_INTERVAL     -> enforcement.quota_interval
//   - BLOCKED_IPS_FILE   -> banlist.denylist_path
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_read_timeout": "server.read_timeout",
		"shutdown_timeout":  "server.shutdown_timeout",
		"cors_origins":      "server.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Database mappings
		"data_dir":         "database.path",
		"gc_interval":      "database.gc_interval",
		"gc_discard_ratio": "database.gc_discard_ratio",

		// Auth mappings
		"admin_username":      "auth.admin_username",
		"admin_password_hash": "auth.admin_password_hash",
		"jwt_secret":          "auth.jwt_secret",
		"token_ttl":           "auth.token_ttl",

		// Daemon control mappings
		"occtl_path":          "occtl.occtl_path",
		"ocpasswd_path":       "occtl.ocpasswd_path",
		"ocserv_passwd_file":  "occtl.passwd_file",
		"command_timeout":     "occtl.command_timeout",
		"commands_per_second": "occtl.commands_per_second",

		// Enforcement mappings
		"quota_interval":      "enforcement.quota_interval",
		"connection_interval": "enforcement.connection_interval",
		"ban_duration":        "enforcement.ban_duration",
		"unresolved_marker":   "enforcement.unresolved_marker",
		"unresolved_grace":    "enforcement.unresolved_grace",

		// Banlist mappings
		"blocked_ips_file": "banlist.denylist_path",
		"restore_on_start": "banlist.restore_on_start",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
