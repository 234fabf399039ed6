// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package accounts persists VPN account policy records.
//
// The store's one non-obvious requirement comes from the enforcement
// engine: a quota tick commits every account mutation it decided on in a
// single atomic batch, so a commit failure leaves no half-updated account
// visible to concurrent API readers. ApplyBatch carries that contract.
package accounts

import (
	"context"
	"errors"

	"github.com/tomtom215/ocwarden/internal/models"
)

// Store errors.
var (
	ErrNotFound = errors.New("accounts: not found")
	ErrExists   = errors.New("accounts: already exists")
)

// Store is the account persistence contract.
type Store interface {
	// Get returns the account by username, or ErrNotFound.
	Get(ctx context.Context, username string) (*models.Account, error)

	// List returns all accounts sorted by username.
	List(ctx context.Context) ([]*models.Account, error)

	// Create inserts a new account; ErrExists if the username is taken.
	Create(ctx context.Context, account *models.Account) error

	// Put upserts one account.
	Put(ctx context.Context, account *models.Account) error

	// Delete removes the account; deleting a missing account is ErrNotFound.
	Delete(ctx context.Context, username string) error

	// ApplyBatch commits the given account states in one transaction:
	// either every record is persisted or none is.
	ApplyBatch(ctx context.Context, accounts []*models.Account) error

	// Close releases the underlying database.
	Close() error
}
