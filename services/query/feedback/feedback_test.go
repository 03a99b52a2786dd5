// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"context"
	"strings"
	"testing"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	badgerstore "github.com/openpitiq/fleetquery/services/query/storage/badger"
)

func newTestSink(t *testing.T) *BadgerSink {
	t.Helper()
	db, err := badgerstore.Open(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerSink(db, 0, nil)
}

func TestBadgerSink_SubmitAndScanDay(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()
	day := time.Date(2025, time.June, 18, 14, 30, 0, 0, time.UTC)

	want := []Record{
		{Timestamp: day, UserID: "op-7", Query: "trips yesterday", Intent: "PRODUCTION_SUMMARY", Confidence: 0.82, Task: "sql", Source: "deterministic"},
		{Timestamp: day.Add(time.Hour), UserID: "op-9", Query: "how do we grease the winch", Intent: "ADVISORY_PROCEDURE", Confidence: 0.95, Task: "rag", Source: "deterministic", Notes: "followup"},
	}
	for _, rec := range want {
		require.NoError(t, sink.Submit(ctx, rec))
	}
	// A record from another day must not show up in the scan.
	require.NoError(t, sink.Submit(ctx, Record{
		Timestamp: day.AddDate(0, 0, 1), UserID: "op-7", Query: "and for shift b", Task: "sql",
	}))

	var got []Record
	err := sink.ScanDay(ctx, day, func(rec Record) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	byUser := map[string]Record{}
	for _, rec := range got {
		byUser[rec.UserID] = rec
	}
	assert.Equal(t, "trips yesterday", byUser["op-7"].Query)
	assert.Equal(t, 0.82, byUser["op-7"].Confidence)
	assert.Equal(t, "followup", byUser["op-9"].Notes)
}

func TestKeyLayoutReadableWithoutSink(t *testing.T) {
	db, err := badgerstore.Open(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sink := NewBadgerSink(db, 0, nil)

	ctx := context.Background()
	ts := time.Date(2025, time.June, 18, 8, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Submit(ctx, Record{
		Timestamp: ts, UserID: "op-7", Query: "trips yesterday", Intent: "PRODUCTION_SUMMARY", Task: "sql",
	}))

	// An offline reader sees the journal through KeyPrefix and DecodeRecord
	// alone, without going through the sink.
	var got []Record
	err = db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(KeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			assert.True(t, strings.HasPrefix(key, KeyPrefix+"2025-06-18/"), "key %q", key)
			raw, err := it.Item().ValueCopy(nil)
			require.NoError(t, err)
			rec, err := DecodeRecord(raw)
			require.NoError(t, err)
			got = append(got, rec)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "trips yesterday", got[0].Query)
}

func TestBadgerSink_ZeroTimestampFilledIn(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, sink.Submit(ctx, Record{UserID: "op-1", Query: "fleet status", Task: "sql"}))

	var got []Record
	err := sink.ScanDay(ctx, time.Now().UTC(), func(rec Record) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestBadgerSink_CancelledContext(t *testing.T) {
	sink := newTestSink(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Submit(ctx, Record{UserID: "op-1", Query: "x", Task: "sql"})
	assert.Error(t, err)
}

func TestNopSink(t *testing.T) {
	var sink Sink = NopSink{}
	assert.NoError(t, sink.Submit(context.Background(), Record{Query: "anything"}))
}
