// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package main is the OCWarden server entry point.
//
// OCWarden is the administrative control plane for an ocserv (OpenConnect)
// VPN concentrator. It keeps per-account policy (traffic quota, expiry,
// connection limit) in an embedded BadgerDB store, reconciles it against
// the daemon's live session list on two independent tickers, and exposes a
// JSON admin API with a websocket event feed.
//
// # Startup order
//
//  1. Configuration: koanf layers defaults, an optional YAML file, and
//     environment variables (highest wins)
//  2. Account store: BadgerDB at database.path
//  3. Daemon adapter: occtl/ocpasswd wrapped in a circuit breaker
//  4. Ban manager: in-memory records backed by the daemon's denylist file
//  5. Event hub, enforcement engine, JWT authentication, HTTP router
//  6. Supervisor tree: enforcement tickers, event hub, HTTP server
//
// # Configuration
//
// Set CONFIG_PATH to point at a YAML file, or configure everything
// through environment variables (HTTP_PORT, JWT_SECRET, QUOTA_INTERVAL,
// BLOCKED_IPS_FILE, ...). auth.admin_password_hash is a bcrypt hash;
// generate one with the hashpw helper:
//
//	go run ./cmd/hashpw
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful stop: the supervisor tree winds
// down the tickers, drains the HTTP server within server.shutdown_timeout,
// and the store is closed last.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/tomtom215/ocwarden/internal/accounts"
	"github.com/tomtom215/ocwarden/internal/api"
	"github.com/tomtom215/ocwarden/internal/auth"
	"github.com/tomtom215/ocwarden/internal/banlist"
	"github.com/tomtom215/ocwarden/internal/config"
	"github.com/tomtom215/ocwarden/internal/enforcement"
	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/occtl"
	"github.com/tomtom215/ocwarden/internal/supervisor"
	"github.com/tomtom215/ocwarden/internal/supervisor/services"
	ws "github.com/tomtom215/ocwarden/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, so this uses the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("listen", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Str("denylist", cfg.Banlist.DenylistPath).
		Dur("quota_interval", cfg.Enforcement.QuotaInterval).
		Dur("connection_interval", cfg.Enforcement.ConnectionInterval).
		Msg("Starting OCWarden")

	store, err := accounts.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open account store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing account store")
		}
	}()

	client, err := occtl.NewClient(cfg.Occtl)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create daemon client")
	}
	// The breaker stops enforcement from hammering a daemon that is down;
	// credential changes go straight through so admin edits always reach
	// the password file.
	adapter := occtl.NewBreakerAdapter(client)

	bans := banlist.NewManager(cfg.Banlist.DenylistPath)
	defer bans.Close()
	if cfg.Banlist.RestoreOnStart {
		adopted, err := bans.Restore(cfg.Enforcement.BanDuration)
		if err != nil {
			logging.Warn().Err(err).Msg("Denylist restore failed, starting with empty ban set")
		} else if adopted > 0 {
			logging.Info().Int("adopted", adopted).Msg("Restored bans from denylist file")
		}
	}

	hub := ws.NewHub()
	engine := enforcement.NewEngine(store, adapter, bans, hub, cfg.Enforcement)
	authenticator := auth.NewAuthenticator(cfg.Auth)

	handler := api.NewHandler(store, engine, adapter, client, bans, authenticator)
	router := api.NewRouter(handler, authenticator, hub, cfg.Server)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	quotaTick, err := services.NewTickerService(
		"quota-tick", cfg.Enforcement.QuotaInterval, true, engine.RunQuotaTick)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create quota ticker")
	}
	connectionTick, err := services.NewTickerService(
		"connection-tick", cfg.Enforcement.ConnectionInterval, true, engine.RunConnectionTick)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create connection ticker")
	}
	storeGC, err := services.NewTickerService(
		"store-gc", cfg.Database.GCInterval, false, func(ctx context.Context) error {
			return store.RunGC(cfg.Database.GCDiscardRatio)
		})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create store GC ticker")
	}

	tree.AddEnforcementService(quotaTick)
	tree.AddEnforcementService(connectionTick)
	tree.AddEnforcementService(storeGC)
	tree.AddEventsService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("OCWarden stopped")
}
