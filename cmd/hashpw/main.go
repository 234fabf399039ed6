// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Command hashpw generates the bcrypt hash for auth.admin_password_hash.
//
// The password is read from stdin so it never appears in shell history:
//
//	echo -n 'secret' | hashpw
//	hashpw   (interactive, reads one line)
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tomtom215/ocwarden/internal/auth"
)

func main() {
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil && password == "" {
		fmt.Fprintln(os.Stderr, "hashpw: failed to read password from stdin")
		os.Exit(1)
	}
	password = strings.TrimRight(password, "\r\n")

	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "hashpw: password must be at least 8 characters")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
