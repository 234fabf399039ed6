// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

func TestNewTickerServiceValidation(t *testing.T) {
	tick := func(ctx context.Context) error { return nil }

	if _, err := NewTickerService("x", 0, false, tick); err == nil {
		t.Error("zero interval accepted")
	}
	if _, err := NewTickerService("x", -time.Second, false, tick); err == nil {
		t.Error("negative interval accepted")
	}
	if _, err := NewTickerService("x", time.Second, false, nil); err == nil {
		t.Error("nil tick function accepted")
	}
}

func TestTickerServiceRunsImmediately(t *testing.T) {
	var ticks atomic.Int32
	svc, err := NewTickerService("immediate", time.Hour, true, func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("NewTickerService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.After(time.Second)
	for ticks.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("startup tick never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	// The hour-long interval never elapsed, so only the startup tick ran.
	if got := ticks.Load(); got != 1 {
		t.Errorf("ticks = %d, want 1", got)
	}
}

func TestTickerServiceTicksOnInterval(t *testing.T) {
	var ticks atomic.Int32
	svc, err := NewTickerService("fast", 10*time.Millisecond, false, func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("NewTickerService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks before deadline", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-errCh
}

func TestTickerServiceSurvivesTickErrors(t *testing.T) {
	var ticks atomic.Int32
	svc, err := NewTickerService("flaky", 10*time.Millisecond, false, func(ctx context.Context) error {
		ticks.Add(1)
		return errors.New("daemon unreachable")
	})
	if err != nil {
		t.Fatalf("NewTickerService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop stopped after a failing tick")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestTickerServiceImplementsSutureService(t *testing.T) {
	var _ suture.Service = (*TickerService)(nil)

	svc, err := NewTickerService("quota-tick", time.Minute, true, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("NewTickerService: %v", err)
	}
	if svc.String() != "quota-tick" {
		t.Errorf("String() = %q, want quota-tick", svc.String())
	}
}
