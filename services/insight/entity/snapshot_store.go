// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

// =============================================================================
// SnapshotStore: Known-Company Persistence
// =============================================================================
//
// The entity store is a network collaborator; its listing is fetched per
// freshness window, not per request. This store persists the last good
// snapshot in BadgerDB so a restart (or a store outage at startup) does not
// leave the Entity Resolver blind until the store answers.
//
// Design choices:
//
//	1. BadgerDB (embedded): snapshots are service infrastructure, not user
//	   data. No network call, no availability dependency.
//
//	2. Fixed versioned key with TTL: the snapshot is a single current-value
//	   cache, not content-addressed. Expiry is enforced by BadgerDB's GC;
//	   an expired key reads as a cache miss.
//
//	3. Nil-safe: the SnapshotProvider checks for a nil SnapshotStore and
//	   runs in-memory-only. That is the correct behavior for tests and for
//	   deployments without a cache directory.

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/pitcrewai/meetinsight/services/insight/storage/badger"
)

// snapshotDefaultTTL bounds how stale a persisted snapshot may get before
// it reads as a miss.
const snapshotDefaultTTL = 24 * time.Hour

// snapshotKey is the versioned BadgerDB key for the current snapshot.
const snapshotKey = "entities/snapshot/v1"

// errSnapshotMiss distinguishes "key not found" from a storage error.
var errSnapshotMiss = errors.New("snapshot miss")

// SnapshotStore persists known-company snapshots across service restarts.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Load retrieves the persisted snapshot.
	//
	// Returns (nil, nil) on cache miss (key absent or TTL expired).
	// Returns (nil, error) on storage failure.
	Load(ctx context.Context) ([]Company, error)

	// Save persists the snapshot with the store's TTL.
	//
	// Returns non-nil error only on storage failure. Callers log it as a
	// warning and continue; persistence failure is non-fatal.
	Save(ctx context.Context, companies []Company) error
}

// BadgerSnapshotStore implements SnapshotStore backed by a BadgerDB
// instance owned by the caller (opened in main, closed at shutdown).
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type BadgerSnapshotStore struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerSnapshotStore creates a BadgerSnapshotStore.
//
// # Inputs
//
//   - db: Opened BadgerDB wrapper. Must not be nil.
//   - ttl: Snapshot lifetime. Pass 0 to use the default (24h).
//   - logger: Logger for hit/miss diagnostics. May be nil.
//
// # Outputs
//
//   - *BadgerSnapshotStore: Ready-to-use store. Never nil.
func NewBadgerSnapshotStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerSnapshotStore {
	if db == nil {
		panic("NewBadgerSnapshotStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = snapshotDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerSnapshotStore{db: db, ttl: ttl, logger: logger}
}

// Load retrieves the persisted known-company snapshot.
//
// # Outputs
//
//   - []Company: The snapshot. Nil on miss or error.
//   - error: Non-nil on storage or decode failure. Nil on miss and success.
func (s *BadgerSnapshotStore) Load(ctx context.Context) ([]Company, error) {
	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errSnapshotMiss
		}
		if err != nil {
			return fmt.Errorf("get snapshot key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errSnapshotMiss) {
		s.logger.Debug("entity snapshot: miss")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entity snapshot load: %w", err)
	}

	var companies []Company
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&companies); err != nil {
		return nil, fmt.Errorf("entity snapshot decode: %w", err)
	}

	s.logger.Debug("entity snapshot: hit", slog.Int("company_count", len(companies)))
	return companies, nil
}

// Save persists the snapshot with the configured TTL.
//
// # Outputs
//
//   - error: Non-nil on encode or storage failure.
func (s *BadgerSnapshotStore) Save(ctx context.Context, companies []Company) error {
	if len(companies) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(companies); err != nil {
		return fmt.Errorf("entity snapshot encode: %w", err)
	}

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry([]byte(snapshotKey), buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("entity snapshot save: %w", err)
	}

	s.logger.Debug("entity snapshot: saved",
		slog.Int("company_count", len(companies)),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}
