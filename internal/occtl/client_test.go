// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package occtl

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type recordedCall struct {
	bin   string
	args  []string
	stdin string
}

type fakeRunner struct {
	out   []byte
	err   error
	calls []recordedCall
}

func (f *fakeRunner) run(ctx context.Context, label, bin string, stdin io.Reader, args ...string) ([]byte, error) {
	call := recordedCall{bin: bin, args: args}
	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		call.stdin = string(data)
	}
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func newFakeClient(runner *fakeRunner) *Client {
	return &Client{
		occtlPath:    "/usr/bin/occtl",
		ocpasswdPath: "/usr/bin/ocpasswd",
		passwdFile:   "/etc/ocserv/ocpasswd",
		runner:       runner,
	}
}

func TestClientCommandLines(t *testing.T) {
	tests := []struct {
		name     string
		call     func(c *Client) error
		wantBin  string
		wantArgs string
	}{
		{
			"disconnect session",
			func(c *Client) error { return c.DisconnectSession(context.Background(), 42) },
			"/usr/bin/occtl", "disconnect id 42",
		},
		{
			"disconnect user",
			func(c *Client) error { return c.DisconnectUser(context.Background(), "alice") },
			"/usr/bin/occtl", "disconnect user alice",
		},
		{
			"lock user",
			func(c *Client) error { return c.LockUser(context.Background(), "alice") },
			"/usr/bin/ocpasswd", "-c /etc/ocserv/ocpasswd -l alice",
		},
		{
			"unlock user",
			func(c *Client) error { return c.UnlockUser(context.Background(), "alice") },
			"/usr/bin/ocpasswd", "-c /etc/ocserv/ocpasswd -u alice",
		},
		{
			"delete user",
			func(c *Client) error { return c.DeleteUser(context.Background(), "alice") },
			"/usr/bin/ocpasswd", "-c /etc/ocserv/ocpasswd -d alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			if err := tt.call(newFakeClient(runner)); err != nil {
				t.Fatalf("call: %v", err)
			}
			if len(runner.calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(runner.calls))
			}
			got := runner.calls[0]
			if got.bin != tt.wantBin {
				t.Errorf("bin = %q, want %q", got.bin, tt.wantBin)
			}
			if args := strings.Join(got.args, " "); args != tt.wantArgs {
				t.Errorf("args = %q, want %q", args, tt.wantArgs)
			}
		})
	}
}

func TestClientAddUserFeedsPasswordTwice(t *testing.T) {
	runner := &fakeRunner{}
	c := newFakeClient(runner)

	if err := c.AddUser(context.Background(), "alice", "s3cret"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	call := runner.calls[0]
	if args := strings.Join(call.args, " "); args != "-c /etc/ocserv/ocpasswd alice" {
		t.Errorf("args = %q", args)
	}
	if call.stdin != "s3cret\ns3cret\n" {
		t.Errorf("stdin = %q, want password entered twice", call.stdin)
	}
}

func TestClientListSessions(t *testing.T) {
	runner := &fakeRunner{out: []byte(`[{"ID": 5, "Username": "bob", "RX": "100", "TX": "200"}]`)}
	c := newFakeClient(runner)

	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Username != "bob" || sessions[0].RX != 100 {
		t.Fatalf("sessions = %+v", sessions)
	}
	if args := strings.Join(runner.calls[0].args, " "); args != "-j show users" {
		t.Errorf("args = %q, want %q", args, "-j show users")
	}
}

func TestClientStatusOfflineOnError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("connect: no such file")}
	c := newFakeClient(runner)

	status, err := c.Status(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if status == nil || status.Online {
		t.Fatalf("status = %+v, want offline", status)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	runner := &fakeRunner{err: errors.New("daemon down")}
	b := NewBreakerAdapter(newFakeClient(runner))

	for i := 0; i < 5; i++ {
		if _, err := b.ListSessions(context.Background()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	before := len(runner.calls)
	if _, err := b.ListSessions(context.Background()); err == nil {
		t.Fatal("expected open-circuit error")
	}
	if len(runner.calls) != before {
		t.Error("open breaker still reached the daemon")
	}
}

func TestBreakerPassesThroughControlCalls(t *testing.T) {
	runner := &fakeRunner{err: errors.New("daemon down")}
	b := NewBreakerAdapter(newFakeClient(runner))

	// Trip the breaker on session enumeration.
	for i := 0; i < 5; i++ {
		b.ListSessions(context.Background())
	}

	before := len(runner.calls)
	b.DisconnectUser(context.Background(), "alice")
	if len(runner.calls) != before+1 {
		t.Error("control call was short-circuited")
	}
}
