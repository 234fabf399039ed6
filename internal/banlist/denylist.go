// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package banlist

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// denylistFile manages the newline-delimited address file consumed by the
// VPN stack. Format is a hard external constraint: one address per line, no
// comments. Writes are serialized; each mutation rewrites or appends and
// fsyncs so the connect-script never sees a torn line.
type denylistFile struct {
	mu   sync.Mutex
	path string
}

// readAll returns the deduplicated addresses currently in the file.
// A missing file reads as empty.
func (f *denylistFile) readAll() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked()
}

func (f *denylistFile) readLocked() ([]string, error) {
	fh, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open denylist: %w", err)
	}
	defer fh.Close()

	seen := make(map[string]struct{})
	var addrs []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		addr := strings.TrimSpace(sc.Text())
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read denylist: %w", err)
	}
	return addrs, nil
}

// add appends the address if not already present.
func (f *denylistFile) add(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.readLocked()
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a == address {
			return nil
		}
	}

	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open denylist for append: %w", err)
	}
	defer fh.Close()

	if _, err := fmt.Fprintln(fh, address); err != nil {
		return fmt.Errorf("append denylist: %w", err)
	}
	return fh.Sync()
}

// remove rewrites the file without the address. Removing an address that is
// not present is a no-op.
func (f *denylistFile) remove(address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.readLocked()
	if err != nil {
		return err
	}

	found := false
	kept := existing[:0]
	for _, a := range existing {
		if a == address {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return nil
	}

	tmp := f.path + ".tmp"
	fh, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open denylist temp: %w", err)
	}
	for _, a := range kept {
		if _, err := fmt.Fprintln(fh, a); err != nil {
			fh.Close()
			os.Remove(tmp)
			return fmt.Errorf("write denylist temp: %w", err)
		}
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync denylist temp: %w", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close denylist temp: %w", err)
	}
	return os.Rename(tmp, f.path)
}
