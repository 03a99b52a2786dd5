// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"testing"
	"time"
)

func newTestResolver() (*FollowUpResolver, *ContextStore) {
	store := NewContextStore(DefaultContextTTL)
	extractor := NewExtractor(time.Date(2025, time.June, 18, 0, 0, 0, 0, time.UTC))
	return NewFollowUpResolver(store, extractor, nil), store
}

func TestResolve_NoContextMeansNoFollowUp(t *testing.T) {
	r, _ := newTestResolver()

	_, _, ok := r.Resolve(context.Background(), "u1", "and what about shift b")
	if ok {
		t.Error("no stored context, must not resolve as follow-up")
	}
}

func TestResolve_ConstraintUpdateAfterTargetOptimization(t *testing.T) {
	r, store := newTestResolver()

	store.Put("u1", ConversationTurn{
		Question: "how do we achieve a target of 50000 tons in 30 days",
		Intent:   "TARGET_OPTIMIZATION",
		Params: ParameterSet{
			Shifts:     []string{"A"},
			ShiftCount: 1,
			Extras:     map[string]any{"target": 50000.0, "duration": 30},
		},
	})

	merged, prior, ok := r.Resolve(context.Background(), "u1", "2500 tons already mined but EX-139 broke down")
	if !ok {
		t.Fatal("expected a follow-up")
	}
	if prior.Intent != "TARGET_OPTIMIZATION" {
		t.Errorf("prior intent = %s, want TARGET_OPTIMIZATION", prior.Intent)
	}

	// Prior turn's parameters survive.
	if merged.Extras["target"] != 50000.0 || merged.Extras["duration"] != 30 {
		t.Errorf("prior target/duration lost: %v", merged.Extras)
	}
	if len(merged.Shifts) != 1 || merged.Shifts[0] != "A" {
		t.Errorf("prior shift lost: %v", merged.Shifts)
	}

	// New constraints land on top.
	if merged.Extras["mined_amount"] != 2500.0 {
		t.Errorf("mined_amount = %v, want 2500", merged.Extras["mined_amount"])
	}
	excluded, _ := merged.Extras["exclude_equipment"].([]string)
	if len(excluded) != 1 || excluded[0] != "EX-139" {
		t.Errorf("exclude_equipment = %v, want [EX-139]", excluded)
	}
	// The broken machine is a constraint, not a query subject.
	for _, id := range merged.EquipmentIDs {
		if id == "EX-139" {
			t.Error("broken-down machine leaked into equipment_ids")
		}
	}
}

func TestResolve_GoalRestatementOverridesPrior(t *testing.T) {
	r, store := newTestResolver()

	store.Put("u1", ConversationTurn{
		Question: "how do we achieve a target of 50000 tons in 30 days",
		Intent:   "TARGET_OPTIMIZATION",
		Params: ParameterSet{
			Extras: map[string]any{"target": 50000.0, "duration": 30},
		},
	})

	merged, _, ok := r.Resolve(context.Background(), "u1", "what if the target is 60000 in 45 days")
	if !ok {
		t.Fatal("expected a follow-up")
	}
	if merged.Extras["target"] != 60000.0 {
		t.Errorf("target = %v, want restated 60000", merged.Extras["target"])
	}
	if merged.Extras["duration"] != 45 {
		t.Errorf("duration = %v, want restated 45", merged.Extras["duration"])
	}
}

func TestResolve_StandalonePatternsForceFresh(t *testing.T) {
	r, store := newTestResolver()
	store.Put("u1", ConversationTurn{Intent: "PRODUCTION_SUMMARY"})

	// Explicit month names, explicit shift mentions, and full questions all
	// force a fresh interpretation regardless of brevity.
	for _, q := range []string{
		"show total production for january across the whole fleet",
		"trips in february",
		"shift b",
		"output on 2024-03-15",
	} {
		if _, _, ok := r.Resolve(context.Background(), "u1", q); ok {
			t.Errorf("%q: resolved as follow-up, want standalone", q)
		}
	}
}

func TestResolve_ContinuationPatterns(t *testing.T) {
	r, store := newTestResolver()
	store.Put("u1", ConversationTurn{Intent: "EQUIPMENT_OPTIMIZATION"})

	for _, q := range []string{
		"and with only 4 tippers",
		"what if two excavators are down",
		"b",
	} {
		if _, _, ok := r.Resolve(context.Background(), "u1", q); !ok {
			t.Errorf("%q: not resolved as follow-up", q)
		}
	}
}

func TestResolve_EquipmentLimit(t *testing.T) {
	r, store := newTestResolver()
	store.Put("u1", ConversationTurn{Intent: "EQUIPMENT_OPTIMIZATION"})

	merged, _, ok := r.Resolve(context.Background(), "u1", "and with only 4 tippers")
	if !ok {
		t.Fatal("expected a follow-up")
	}
	limit, _ := merged.Extras["equipment_limit"].(map[string]any)
	if limit == nil {
		t.Fatal("expected an equipment_limit constraint")
	}
	if limit["kind"] != "max" || limit["n"] != 4 || limit["unit"] != "tippers" {
		t.Errorf("equipment_limit = %v, want max 4 tippers", limit)
	}
}

func TestFollowUpConfidence_Weights(t *testing.T) {
	// Pattern + brevity + no question mark + leading conjunction.
	if c := followUpConfidence("and with only 4 tippers"); c < followUpThreshold {
		t.Errorf("confidence = %v, want >= %v", c, followUpThreshold)
	}
	// Long question-shaped input without continuation markers stays under.
	if c := followUpConfidence("can you walk me through everything the fleet did across the operation?"); c >= followUpThreshold {
		t.Errorf("confidence = %v, want < %v", c, followUpThreshold)
	}
}

// =============================================================================
// Context Store
// =============================================================================

func TestContextStore_TTLExpiryOnRead(t *testing.T) {
	store := NewContextStore(5 * time.Minute)
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put("u1", ConversationTurn{Intent: "FORECASTING"})

	now = now.Add(4 * time.Minute)
	if _, ok := store.Get("u1"); !ok {
		t.Error("entry inside TTL must be visible")
	}

	// The read-time check is the correctness mechanism: no sweep has run,
	// yet the entry must be gone.
	now = now.Add(2 * time.Minute)
	if _, ok := store.Get("u1"); ok {
		t.Error("entry past TTL must be treated as absent")
	}
	if store.Len() != 0 {
		t.Errorf("expired entry not reclaimed on read, len = %d", store.Len())
	}
}

func TestContextStore_Sweep(t *testing.T) {
	store := NewContextStore(5 * time.Minute)
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put("old", ConversationTurn{Intent: "FORECASTING"})
	now = now.Add(6 * time.Minute)
	store.Put("fresh", ConversationTurn{Intent: "SHIFT_ANALYSIS"})

	if removed := store.Sweep(); removed != 1 {
		t.Errorf("sweep removed %d, want 1", removed)
	}
	if _, ok := store.Get("fresh"); !ok {
		t.Error("fresh entry must survive the sweep")
	}
}

func TestContextStore_PerUserIsolation(t *testing.T) {
	store := NewContextStore(5 * time.Minute)
	store.Put("u1", ConversationTurn{Intent: "FORECASTING"})

	if _, ok := store.Get("u2"); ok {
		t.Error("context must never be shared across users")
	}
}

func TestContextStore_PutCopiesParams(t *testing.T) {
	store := NewContextStore(5 * time.Minute)
	turn := ConversationTurn{
		Intent: "TARGET_OPTIMIZATION",
		Params: ParameterSet{Shifts: []string{"A"}},
	}
	store.Put("u1", turn)
	turn.Params.Shifts[0] = "C"

	got, ok := store.Get("u1")
	if !ok {
		t.Fatal("expected the stored turn")
	}
	if got.Params.Shifts[0] != "A" {
		t.Error("stored params alias the caller's slice")
	}
}
