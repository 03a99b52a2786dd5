// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"sync"
	"time"
)

// DefaultContextTTL bounds how long a conversation context stays usable.
const DefaultContextTTL = 5 * time.Minute

// DefaultSweepInterval is how often the background sweep reclaims expired
// entries. The sweep is a memory optimization only; correctness comes from
// the read-time expiry check.
const DefaultSweepInterval = time.Minute

type contextEntry struct {
	turn       ConversationTurn
	insertedAt time.Time
}

// ContextStore holds the last completed turn per user with a hard TTL.
//
// # Description
//
// Every read checks the entry's age against the TTL and treats a stale entry
// as absent, so a request never observes expired context even if the
// background sweep has not fired yet. Writes are last-write-wins: a user's
// turns are sequential in practice.
//
// # Thread Safety
//
// Safe for concurrent use. A single RWMutex guards the map.
type ContextStore struct {
	mu      sync.RWMutex
	entries map[string]contextEntry
	ttl     time.Duration

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewContextStore creates a store with the given TTL. A non-positive ttl
// falls back to DefaultContextTTL.
func NewContextStore(ttl time.Duration) *ContextStore {
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	return &ContextStore{
		entries: make(map[string]contextEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the user's stored turn, or false if none exists or the stored
// turn has aged past the TTL. An expired entry is deleted on the spot.
func (s *ContextStore) Get(userID string) (ConversationTurn, bool) {
	s.mu.RLock()
	entry, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return ConversationTurn{}, false
	}
	if s.now().Sub(entry.insertedAt) > s.ttl {
		s.mu.Lock()
		// Recheck under the write lock: a fresh Put may have raced in.
		if cur, ok := s.entries[userID]; ok && cur.insertedAt.Equal(entry.insertedAt) {
			delete(s.entries, userID)
		}
		s.mu.Unlock()
		return ConversationTurn{}, false
	}
	return entry.turn, true
}

// Put stores or refreshes the user's turn. The stored parameters are deep
// copied so later caller mutation cannot leak into the store.
func (s *ContextStore) Put(userID string, turn ConversationTurn) {
	turn.Params = turn.Params.Clone()
	s.mu.Lock()
	s.entries[userID] = contextEntry{turn: turn, insertedAt: s.now()}
	s.mu.Unlock()
}

// Delete removes the user's context if present.
func (s *ContextStore) Delete(userID string) {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes every expired entry and returns how many were reclaimed.
func (s *ContextStore) Sweep() int {
	cutoff := s.now()
	s.mu.Lock()
	removed := 0
	for userID, entry := range s.entries {
		if cutoff.Sub(entry.insertedAt) > s.ttl {
			delete(s.entries, userID)
			removed++
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()

	contextStoreEntries.Set(float64(remaining))
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled. Call it in
// its own goroutine.
func (s *ContextStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
