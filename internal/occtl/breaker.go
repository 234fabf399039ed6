// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package occtl

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/metrics"
	"github.com/tomtom215/ocwarden/internal/models"
)

// BreakerAdapter wraps an Adapter with a circuit breaker around session
// enumeration, the one call made on every tick of both enforcement tasks.
// When the daemon is down, the open circuit fails ticks fast instead of
// stacking up command timeouts. Control calls (disconnect/lock/unlock) are
// not broken: they are rare, targeted, and already best-effort.
type BreakerAdapter struct {
	Adapter
	cb *gobreaker.CircuitBreaker[[]models.Session]
}

// NewBreakerAdapter wraps the adapter. The breaker opens after a 60% failure
// rate over at least 5 calls and probes again after 2 minutes.
func NewBreakerAdapter(inner Adapter) *BreakerAdapter {
	const name = "occtl-sessions"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]models.Session](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerAdapter{Adapter: inner, cb: cb}
}

// ListSessions enumerates sessions through the circuit breaker.
func (b *BreakerAdapter) ListSessions(ctx context.Context) ([]models.Session, error) {
	return b.cb.Execute(func() ([]models.Session, error) {
		return b.Adapter.ListSessions(ctx)
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
