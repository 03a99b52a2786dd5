// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

// =============================================================================
// Embedded BadgerDB Wrapper
// =============================================================================
//
// Thin lifecycle and transaction wrapper around BadgerDB. The service opens
// one DB at startup (feedback journal) and hands it to the stores that need
// it; stores never own the DB lifecycle.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// gcInterval is how often value-log garbage collection runs.
const gcInterval = 10 * time.Minute

// gcDiscardRatio is the rewrite threshold BadgerDB uses when collecting a
// value-log file.
const gcDiscardRatio = 0.5

// Config controls how the DB is opened.
type Config struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string

	// InMemory opens a non-persistent instance. Used by tests.
	InMemory bool

	// Logger receives open/close and GC diagnostics. May be nil.
	Logger *slog.Logger
}

// DB wraps an open BadgerDB instance.
//
// # Thread Safety
//
// Safe for concurrent use. Transactions are per-goroutine.
type DB struct {
	inner  *dgbadger.DB
	logger *slog.Logger
	stopGC chan struct{}
}

// Open opens (or creates) the database at cfg.Path and starts the value-log
// GC loop.
func Open(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := dgbadger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	inner, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	db := &DB{inner: inner, logger: logger, stopGC: make(chan struct{})}
	if !cfg.InMemory {
		go db.runGC()
	}

	logger.Info("badger opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
	)
	return db, nil
}

// Close stops the GC loop and closes the database. Safe to call once.
func (db *DB) Close() error {
	close(db.stopGC)
	if err := db.inner.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	db.logger.Info("badger closed")
	return nil
}

// WithTxn runs fn inside a read-write transaction. The transaction commits
// when fn returns nil and discards otherwise. Context cancellation is
// checked before starting; BadgerDB transactions themselves do not block.
func (db *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.inner.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
func (db *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.inner.View(fn)
}

// runGC drives value-log garbage collection until Close.
func (db *DB) runGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when nothing qualified;
			// that is the common case and not worth logging.
			if err := db.inner.RunValueLogGC(gcDiscardRatio); err != nil &&
				err != dgbadger.ErrNoRewrite {
				db.logger.Warn("badger gc", slog.String("error", err.Error()))
			}
		}
	}
}
