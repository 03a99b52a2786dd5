// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// feedback_dump inspects the fleetquery classification feedback journal.
//
// The query service journals every classification outcome (query, resolved
// intent, confidence, chosen task) to BadgerDB for offline accuracy review.
// This tool opens the journal read-only and prints a human-readable summary:
// per-day record counts, per-intent distribution, and optionally each record.
//
// Usage:
//
//	feedback_dump [--path /var/lib/fleetquery/feedback] [--day 2026-08-29] [--records]
//
// If --path is not given, reads FEEDBACK_DIR from the environment.
//
// Exit codes:
//
//	0 — success (including "empty journal", which prints a message and exits 0)
//	1 — error opening or reading the database
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/openpitiq/fleetquery/services/query/feedback"
)

func main() {
	pathFlag := flag.String("path", "", "Path to feedback BadgerDB directory (overrides FEEDBACK_DIR env var)")
	dayFlag := flag.String("day", "", "Only show records from this UTC day (YYYY-MM-DD)")
	recordsFlag := flag.Bool("records", false, "Print every record, not just the summary")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("FEEDBACK_DIR")
	}
	if dbPath == "" {
		fatalf("no journal path: pass --path or set FEEDBACK_DIR")
	}

	fmt.Printf("Feedback journal path: %s\n", dbPath)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Journal directory does not exist. The service has not journaled any classifications yet.")
		os.Exit(0)
	}

	prefix := feedback.KeyPrefix
	if *dayFlag != "" {
		if _, err := time.Parse("2006-01-02", *dayFlag); err != nil {
			fatalf("bad --day %q: want YYYY-MM-DD", *dayFlag)
		}
		prefix += *dayFlag + "/"
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil).
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	var (
		records   []feedback.Record
		decodeErr int
	)
	byDay := map[string]int{}
	byIntent := map[string]int{}
	byTask := map[string]int{}

	err = db.View(func(txn *dgbadger.Txn) error {
		itOpts := dgbadger.DefaultIteratorOptions
		itOpts.PrefetchValues = true
		it := txn.NewIterator(itOpts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.Key())

			day := strings.TrimPrefix(key, feedback.KeyPrefix)
			if i := strings.IndexByte(day, '/'); i >= 0 {
				day = day[:i]
			}
			byDay[day]++

			raw, err := item.ValueCopy(nil)
			if err != nil {
				decodeErr++
				continue
			}
			rec, err := feedback.DecodeRecord(raw)
			if err != nil {
				decodeErr++
				continue
			}
			byIntent[rec.Intent]++
			byTask[rec.Task]++
			if *recordsFlag {
				records = append(records, rec)
			}
		}
		return nil
	})
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	total := 0
	for _, n := range byDay {
		total += n
	}
	if total == 0 {
		fmt.Println("\nNo feedback records found.")
		os.Exit(0)
	}

	fmt.Printf("\nFound %d record%s", total, plural(total))
	if decodeErr > 0 {
		fmt.Printf(" (%d undecodable)", decodeErr)
	}
	fmt.Println()
	fmt.Println(strings.Repeat("─", 72))

	fmt.Println("\nBy day:")
	for _, day := range sortedKeys(byDay) {
		fmt.Printf("  %s  %6d\n", day, byDay[day])
	}

	fmt.Println("\nBy intent:")
	for _, intent := range sortedKeys(byIntent) {
		fmt.Printf("  %-28s  %6d\n", intent, byIntent[intent])
	}

	fmt.Println("\nBy task:")
	for _, task := range sortedKeys(byTask) {
		fmt.Printf("  %-10s  %6d\n", task, byTask[task])
	}

	if *recordsFlag {
		fmt.Println("\nRecords:")
		fmt.Println(strings.Repeat("─", 72))
		for _, rec := range records {
			fmt.Printf("%s  %-24s  conf=%.2f  task=%-8s  src=%-13s  %q\n",
				rec.Timestamp.Format("2006-01-02 15:04:05"),
				rec.Intent,
				rec.Confidence,
				rec.Task,
				rec.Source,
				rec.Query,
			)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "feedback_dump: "+format+"\n", args...)
	os.Exit(1)
}
