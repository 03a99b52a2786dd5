// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

// =============================================================================
// Classification Feedback Journal
// =============================================================================
//
// Every classification emits a Record for offline analysis of intent
// accuracy. Submission is fire-and-forget: the sink must never slow down or
// alter the routing decision, so writes are rate-limited and dropped rather
// than queued when the limiter is exhausted.
//
// Storage layout:
//
//	feedback/v1/{YYYY-MM-DD}/{uuid}  →  gob-encoded Record
//	                                     TTL: 30 days

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	badgerstore "github.com/openpitiq/fleetquery/services/query/storage/badger"
)

// defaultTTL keeps records long enough for a monthly accuracy review.
const defaultTTL = 30 * 24 * time.Hour

// KeyPrefix is the journal's key namespace, versioned to allow future format
// changes without collision. Exported so offline tooling reading the
// database directly shares one definition of the layout.
const KeyPrefix = "feedback/v1/"

// defaultRate bounds journal writes; bursts above it are dropped silently.
const (
	defaultRate  = rate.Limit(50)
	defaultBurst = 100
)

// Record is one classification outcome captured for offline analysis.
type Record struct {
	Timestamp  time.Time
	UserID     string
	Query      string
	Intent     string
	Confidence float64
	Task       string
	Source     string
	Notes      string
}

// Sink receives classification records.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// Submit journals one record. Submission failure is non-fatal; callers
	// log and continue.
	Submit(ctx context.Context, rec Record) error
}

// =============================================================================
// NopSink
// =============================================================================

// NopSink discards every record. Used when no journal directory is
// configured and in tests.
type NopSink struct{}

func (NopSink) Submit(context.Context, Record) error { return nil }

// =============================================================================
// BadgerSink
// =============================================================================

// BadgerSink journals records to a BadgerDB instance with a 30-day TTL.
//
// # Description
//
// Keys are feedback/v1/{day}/{uuid}, so an offline analysis pass can scan
// one day's records with a prefix iterator. Writes race against a token
// bucket: when the bucket is empty the record is counted and dropped, never
// queued, because the journal must not apply backpressure to routing.
//
// # Thread Safety
//
// Safe for concurrent use.
type BadgerSink struct {
	db      *badgerstore.DB
	ttl     time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewBadgerSink creates a sink over an already opened DB. The caller owns
// the DB lifecycle.
func NewBadgerSink(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerSink {
	if db == nil {
		panic("NewBadgerSink: db must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerSink{
		db:      db,
		ttl:     ttl,
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
		logger:  logger,
	}
}

// Submit journals one record, dropping it when the write budget is spent.
func (s *BadgerSink) Submit(ctx context.Context, rec Record) error {
	if !s.limiter.Allow() {
		droppedTotal.Inc()
		return nil
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	raw, err := encode(rec)
	if err != nil {
		return fmt.Errorf("feedback encode: %w", err)
	}

	key := recordKey(rec.Timestamp)
	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("feedback save: %w", err)
	}

	writtenTotal.Inc()
	return nil
}

// ScanDay visits every record journaled on the given UTC day, in key order.
// Used by the offline dump tool.
func (s *BadgerSink) ScanDay(ctx context.Context, day time.Time, visit func(rec Record) error) error {
	prefix := []byte(KeyPrefix + day.UTC().Format("2006-01-02") + "/")
	return s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			rec, err := DecodeRecord(raw)
			if err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			if err := visit(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// Helpers
// =============================================================================

func recordKey(ts time.Time) []byte {
	return []byte(KeyPrefix + ts.UTC().Format("2006-01-02") + "/" + uuid.NewString())
}

func encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecord decodes a stored journal value. The inverse of what Submit
// writes; offline tooling uses it to read the database directly.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("gob decode: %w", err)
	}
	return rec, nil
}
