// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/openpitiq/fleetquery/services/query/config"
	"github.com/openpitiq/fleetquery/services/query/feedback"
	"github.com/openpitiq/fleetquery/services/query/routing"
	badgerstore "github.com/openpitiq/fleetquery/services/query/storage/badger"
)

// ServiceConfig controls service construction.
type ServiceConfig struct {
	// FeedbackDir is the BadgerDB directory for the feedback journal.
	// Empty disables journaling.
	FeedbackDir string

	// ReferenceDate anchors relative-date math ("last month"). Zero means
	// midnight UTC of the process start day.
	ReferenceDate time.Time

	// Logger may be nil.
	Logger *slog.Logger
}

// Service owns the query-understanding pipeline and its storage.
//
// # Thread Safety
//
// Safe for concurrent use once constructed.
type Service struct {
	pipeline *routing.Pipeline
	intents  atomic.Pointer[config.IntentConfig]
	db       *badgerstore.DB
	logger   *slog.Logger
}

// NewService loads configuration, opens storage, and wires the pipeline.
//
// # Description
//
// Intent definitions and thresholds are embedded and validated at load;
// a malformed table is a programming defect and fails construction rather
// than surfacing per-query.
func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	intents, err := config.GetIntentConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load intent config: %w", err)
	}
	thresholds, err := config.GetThresholds(ctx)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}

	ref := cfg.ReferenceDate
	if ref.IsZero() {
		ref = time.Now().UTC()
	}

	var (
		db   *badgerstore.DB
		sink feedback.Sink = feedback.NopSink{}
	)
	if cfg.FeedbackDir != "" {
		db, err = badgerstore.Open(badgerstore.Config{Path: cfg.FeedbackDir, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open feedback journal: %w", err)
		}
		sink = feedback.NewBadgerSink(db, 0, logger)
	}

	svc := &Service{
		pipeline: routing.NewPipeline(intents, thresholds, ref, sink, logger),
		db:       db,
		logger:   logger,
	}
	svc.intents.Store(intents)

	logger.Info("query service ready",
		slog.Int("intents", len(intents.Intents)),
		slog.Bool("feedback_journal", db != nil),
		slog.Time("reference_date", ref),
	)
	return svc, nil
}

// Route resolves one query turn. Never returns nil.
func (s *Service) Route(ctx context.Context, userID, text string) *routing.RoutingDecision {
	return s.pipeline.ClassifyAndRoute(ctx, userID, text)
}

// RecordAnswer stores an answer excerpt against the user's latest turn so a
// follow-up can reference it.
func (s *Service) RecordAnswer(userID, excerpt string) {
	s.pipeline.RecordAnswer(userID, excerpt)
}

// Intents returns the currently loaded intent definitions, for the
// inspection endpoint.
func (s *Service) Intents() *config.IntentConfig { return s.intents.Load() }

// ReloadIntents installs a new intent configuration on the running service.
// Used by the config file watcher.
func (s *Service) ReloadIntents(cfg *config.IntentConfig) {
	if cfg == nil {
		return
	}
	s.intents.Store(cfg)
	s.pipeline.SetIntentConfig(cfg)
}

// StartSweeper runs the conversation-store sweep until ctx is cancelled.
// Call in its own goroutine.
func (s *Service) StartSweeper(ctx context.Context) {
	s.pipeline.Store().StartSweeper(ctx, routing.DefaultSweepInterval)
}

// Close releases storage. Safe to call when no journal was configured.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
