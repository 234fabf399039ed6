// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package metrics provides Prometheus instrumentation for:
//   - enforcement tick outcomes and durations
//   - account locks, session disconnects, quota resets
//   - temporary bans
//   - occtl command invocations
//   - API endpoint latency and throughput
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enforcement metrics
	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enforcement_tick_duration_seconds",
			Help:    "Duration of enforcement ticks in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"}, // "quota", "connection"
	)

	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_ticks_total",
			Help: "Total number of enforcement ticks",
		},
		[]string{"task", "result"}, // result: "ok", "skipped", "error"
	)

	AccountsLocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_accounts_locked_total",
			Help: "Total number of accounts deactivated by enforcement",
		},
		[]string{"reason"}, // "traffic_exceeded", "expired"
	)

	AccountsReset = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enforcement_quota_resets_total",
			Help: "Total number of scheduled quota resets applied",
		},
	)

	SessionsDisconnected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_sessions_disconnected_total",
			Help: "Total number of sessions disconnected by enforcement",
		},
		[]string{"reason"}, // "excess_connections", "stuck_unresolved", "policy"
	)

	TrafficAccounted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enforcement_traffic_bytes_total",
			Help: "Total bytes attributed to accounts by the delta tracker",
		},
	)

	// Ban manager metrics
	BansActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "banlist_active_bans",
			Help: "Current number of un-expired temporary bans",
		},
	)

	BansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banlist_bans_total",
			Help: "Total number of temporary bans placed",
		},
		[]string{"reason"},
	)

	DenylistWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "banlist_denylist_write_errors_total",
			Help: "Total denylist file write failures (in-memory record kept)",
		},
	)

	// Adapter metrics
	AdapterCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occtl_commands_total",
			Help: "Total occtl/ocpasswd command invocations",
		},
		[]string{"command", "result"}, // result: "ok", "error", "timeout"
	)

	AdapterCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "occtl_command_duration_seconds",
			Help:    "Duration of occtl/ocpasswd command invocations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"command"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "occtl_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Current number of connected event-feed clients",
		},
	)
)
