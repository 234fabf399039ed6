// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package occtl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/ocwarden/internal/metrics"
)

// commandRunner abstracts process execution so the client can be tested
// without the daemon binaries installed.
type commandRunner interface {
	// run executes the binary with args, optionally feeding stdin, and
	// returns stdout. A non-zero exit or timeout is an error.
	run(ctx context.Context, label, bin string, stdin io.Reader, args ...string) ([]byte, error)
}

// execRunner runs real processes with a per-call timeout and shared rate
// pacing across all daemon commands.
type execRunner struct {
	timeout time.Duration
	limiter *rate.Limiter
}

func newExecRunner(timeout time.Duration, commandsPerSecond float64) *execRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if commandsPerSecond <= 0 {
		commandsPerSecond = 10
	}
	return &execRunner{
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), 1),
	}
}

func (r *execRunner) run(ctx context.Context, label, bin string, stdin io.Reader, args ...string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("command pacing: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.AdapterCallDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		metrics.AdapterCalls.WithLabelValues(label, "timeout").Inc()
		return nil, fmt.Errorf("%s timed out after %s: %w", label, r.timeout, ErrDaemonUnavailable)
	case err != nil:
		metrics.AdapterCalls.WithLabelValues(label, "error").Inc()
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) == 0 {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		return nil, fmt.Errorf("%s: %w: %s", label, err, msg)
	}

	metrics.AdapterCalls.WithLabelValues(label, "ok").Inc()
	return stdout.Bytes(), nil
}
