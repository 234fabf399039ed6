// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/ocwarden/internal/logging"
)

// TickFunc is one unit of periodic work. Errors are logged and the loop
// continues; a tick that fails must leave the system consistent enough
// for the next tick to retry.
type TickFunc func(ctx context.Context) error

// TickerService runs a TickFunc on a fixed interval under supervision.
// The enforcement quota tick, the connection-limit tick, and the store's
// value-log GC all run as instances of this service.
type TickerService struct {
	name     string
	interval time.Duration
	tick     TickFunc

	// runImmediately fires one tick at startup instead of waiting a
	// full interval. The enforcement ticks want this so a restart does
	// not leave quota unenforced for a whole period.
	runImmediately bool
}

// NewTickerService creates a supervised periodic task.
func NewTickerService(name string, interval time.Duration, runImmediately bool, tick TickFunc) (*TickerService, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("ticker %q: interval must be positive, got %s", name, interval)
	}
	if tick == nil {
		return nil, fmt.Errorf("ticker %q: tick function is required", name)
	}
	return &TickerService{
		name:           name,
		interval:       interval,
		tick:           tick,
		runImmediately: runImmediately,
	}, nil
}

// Serve implements suture.Service. It returns only when the context is
// canceled; tick errors never terminate the loop, they are logged and
// retried on the next interval.
func (s *TickerService) Serve(ctx context.Context) error {
	if s.runImmediately {
		s.runTick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *TickerService) runTick(ctx context.Context) {
	start := time.Now()
	if err := s.tick(ctx); err != nil {
		logging.Warn().Err(err).Str("service", s.name).
			Dur("elapsed", time.Since(start)).Msg("Periodic task failed")
		return
	}
	logging.Debug().Str("service", s.name).
		Dur("elapsed", time.Since(start)).Msg("Periodic task completed")
}

// String implements fmt.Stringer for suture's log messages.
func (s *TickerService) String() string {
	return s.name
}
