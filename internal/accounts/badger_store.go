// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/models"
)

const accountKeyPrefix = "account:"

// BadgerStore implements Store on BadgerDB. Account records are small JSON
// values keyed by username; a badger transaction gives ApplyBatch its
// all-or-nothing semantics.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) the account database at dir. An empty dir opens
// an in-memory database, used by tests.
func Open(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	// Badger's own logger is chatty at INFO; route it through zerolog at
	// debug instead.
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewWithDB wraps an existing badger handle. Tests use this to share a
// database between the store and failure-injecting wrappers.
func NewWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func accountKey(username string) []byte {
	return []byte(accountKeyPrefix + username)
}

// Get returns the account by username.
func (s *BadgerStore) Get(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &account)
		})
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// List returns all accounts sorted by username. Enforcement iterates this
// order, which keeps per-tick decision ordering deterministic.
func (s *BadgerStore) List(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(accountKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var account models.Account
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &account)
			})
			if err != nil {
				return err
			}
			out = append(out, &account)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Create inserts a new account, failing if the username exists.
func (s *BadgerStore) Create(ctx context.Context, account *models.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := accountKey(account.Username)
		_, err := txn.Get(key)
		if err == nil {
			return ErrExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

// Put upserts one account.
func (s *BadgerStore) Put(ctx context.Context, account *models.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(accountKey(account.Username), data)
	})
}

// Delete removes the account.
func (s *BadgerStore) Delete(ctx context.Context, username string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := accountKey(username)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// ApplyBatch writes every account in one transaction. On error nothing is
// persisted; the caller (a tick) simply skips and retries next interval.
func (s *BadgerStore) ApplyBatch(ctx context.Context, accounts []*models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, account := range accounts {
			data, err := json.Marshal(account)
			if err != nil {
				return fmt.Errorf("marshal account %s: %w", account.Username, err)
			}
			if err := txn.Set(accountKey(account.Username), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunGC triggers one round of Badger value-log garbage collection.
// badger.ErrNoRewrite (nothing to collect) is not an error.
func (s *BadgerStore) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts badger's logger interface onto zerolog at debug level.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}
