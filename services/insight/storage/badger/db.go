// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badger wraps BadgerDB with context-aware transaction helpers for
// service-local caches. The service opens one DB per cache directory at
// startup and owns its lifecycle; stores built on top borrow the handle.
package badger

import (
	"context"
	"fmt"
	"log/slog"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config holds the options for opening a DB.
type Config struct {
	// Path is the on-disk directory. Ignored when InMemory is true.
	Path string

	// InMemory runs Badger without persistence (tests).
	InMemory bool

	// Logger receives Badger's internal log output. May be nil.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with persistence enabled and no path set.
// Callers must set Path before opening.
func DefaultConfig() Config {
	return Config{}
}

// DB wraps a BadgerDB instance with context-aware transaction helpers.
//
// Thread Safety: Safe for concurrent use. Badger transactions are
// per-goroutine.
type DB struct {
	db *dgbadger.DB
}

// OpenDB opens a BadgerDB instance for the given config.
//
// Description:
//
//	Badger's own logger is silenced; the caller's slog logger reports
//	open/close at the service level instead. Returns an error if the
//	directory cannot be created or is locked by another process.
//
// Inputs:
//
//	cfg - Open options. cfg.Path must be set unless cfg.InMemory.
//
// Outputs:
//
//	*DB - The opened database. Caller must Close it.
//	error - Non-nil on open failure.
func OpenDB(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger: config path must be set")
	}

	opts := dgbadger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", cfg.Path, err)
	}
	return &DB{db: db}, nil
}

// WithTxn runs fn inside a read-write transaction.
//
// Description:
//
//	Checks ctx before starting; Badger itself has no context support, so
//	a cancelled context fails fast rather than mid-write.
//
// Inputs:
//
//	ctx - Context checked before the transaction starts.
//	fn - Transaction body. A returned error discards the transaction.
//
// Outputs:
//
//	error - ctx error, fn's error, or the commit error.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
//
// Inputs:
//
//	ctx - Context checked before the transaction starts.
//	fn - Transaction body.
//
// Outputs:
//
//	error - ctx error or fn's error.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// Close releases the database. Safe to call once.
func (d *DB) Close() error {
	return d.db.Close()
}
