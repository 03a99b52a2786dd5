// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openpitiq/fleetquery/services/query/config"
	"github.com/openpitiq/fleetquery/services/query/feedback"
)

var pipelineTracer = otel.Tracer("fleetquery.query.routing.pipeline")

// feedbackTimeout bounds the fire-and-forget journal write so an abandoned
// goroutine cannot linger.
const feedbackTimeout = 2 * time.Second

// Pipeline is the query-understanding entry point other components call.
//
// # Description
//
// ClassifyAndRoute composes the follow-up resolver, parameter extractor,
// intent classifier, deterministic router, and fallback router into one
// call that always produces a decision. The pipeline itself is synchronous
// and allocation-per-request: the only shared mutable state is the
// conversation context store, which handles its own locking.
//
// # Thread Safety
//
// Safe for concurrent use across independent requests.
type Pipeline struct {
	extractor *Extractor
	class     *Classifier
	router    *Router
	fallback  *FallbackRouter
	resolver  *FollowUpResolver
	store     *ContextStore
	sink      feedback.Sink
	logger    *slog.Logger
}

// NewPipeline wires the full pipeline.
//
// # Inputs
//
//   - cfg: Validated intent definitions. Must not be nil.
//   - thresholds: Confidence policy table. Must not be nil.
//   - ref: The "current date" reference for relative-date math. Fixed per
//     deployment so repeated calls are deterministic.
//   - sink: Feedback journal. Pass feedback.NopSink{} to disable.
//   - logger: May be nil.
func NewPipeline(cfg *config.IntentConfig, thresholds *config.Thresholds, ref time.Time, sink feedback.Sink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = feedback.NopSink{}
	}
	extractor := NewExtractor(ref)
	store := NewContextStore(DefaultContextTTL)
	return &Pipeline{
		extractor: extractor,
		class:     NewClassifier(cfg, thresholds, logger),
		router:    NewRouter(thresholds, logger),
		fallback:  NewFallbackRouter(logger),
		resolver:  NewFollowUpResolver(store, extractor, logger),
		store:     store,
		sink:      sink,
		logger:    logger,
	}
}

// Store exposes the conversation context store so the service can run the
// background sweeper and record answer excerpts.
func (p *Pipeline) Store() *ContextStore { return p.store }

// SetIntentConfig swaps the classifier's intent definitions, for config hot
// reload. In-flight requests finish on the rule set they started with.
func (p *Pipeline) SetIntentConfig(cfg *config.IntentConfig) {
	p.class.SetConfig(cfg)
}

// ClassifyAndRoute resolves a routing decision for one query turn.
//
// # Description
//
// Never returns nil and never errors: malformed or empty input resolves to
// a valid low-confidence rag decision via the fallback router. When the
// user has active conversation context and the turn reads as a
// continuation, the prior turn's parameters are merged in (new values win)
// before classification. Every call journals a feedback record
// asynchronously; journal failure never affects the returned decision.
//
// # Inputs
//
//   - ctx: Context for tracing. Not used for cancellation — no step blocks.
//   - userID: Conversation key. An empty userID disables follow-up handling
//     for the turn.
//   - text: Raw query text.
func (p *Pipeline) ClassifyAndRoute(ctx context.Context, userID, text string) *RoutingDecision {
	ctx, span := pipelineTracer.Start(ctx, "routing.Pipeline.ClassifyAndRoute",
		trace.WithAttributes(attribute.Int("query_length", len(text))))
	defer span.End()
	start := time.Now()

	params, prior, followUp := p.resolveParams(ctx, userID, text)
	intent := p.class.Classify(ctx, text, params)
	if followUp {
		intent = p.inheritIntent(intent, prior)
	}

	decision := p.router.Route(ctx, text, intent, params)
	if decision == nil {
		decision = p.fallback.Route(ctx, text)
		decision.Intent = intent.Intent
		decision.Params = params.Clone()
	}

	if userID != "" {
		p.store.Put(userID, ConversationTurn{
			Question: text,
			Intent:   intent.Intent,
			Params:   params,
		})
	}

	p.submitFeedback(userID, text, intent, decision, followUp)

	span.SetAttributes(
		attribute.String("intent", intent.Intent),
		attribute.String("task", decision.Task),
		attribute.String("route_source", decision.RouteSource),
		attribute.Bool("followup", followUp),
	)
	pipelineDuration.Observe(time.Since(start).Seconds())

	p.logger.Info("query routed",
		slog.String("intent", intent.Intent),
		slog.String("task", decision.Task),
		slog.Float64("confidence", decision.Confidence),
		slog.String("route_source", decision.RouteSource),
		slog.Bool("followup", followUp),
	)
	return decision
}

// RecordAnswer refreshes the user's stored turn with an answer excerpt once
// the downstream engine has produced one.
func (p *Pipeline) RecordAnswer(userID, excerpt string) {
	if userID == "" {
		return
	}
	turn, ok := p.store.Get(userID)
	if !ok {
		return
	}
	turn.AnswerExcerpt = excerpt
	p.store.Put(userID, turn)
}

// resolveParams extracts parameters, merging inherited context when the
// turn is a follow-up. The prior turn is zero when the turn stands alone.
func (p *Pipeline) resolveParams(ctx context.Context, userID, text string) (ParameterSet, ConversationTurn, bool) {
	if userID != "" {
		if merged, prior, ok := p.resolver.Resolve(ctx, userID, text); ok {
			return merged, prior, true
		}
	}
	return p.extractor.Extract(text), ConversationTurn{}, false
}

// inheritIntent carries the conversation's intent across a constraint-update
// follow-up. A turn like "2500 tons mined but EX-139 broke down" adjusts the
// running question rather than asking a new one, and classified in isolation
// it lands on a generic summary intent that would route the optimizer's
// constraints to SQL. The prior intent is adopted only when the fresh
// classification produced nothing more specific than a tier-3 match, so a
// follow-up that genuinely changes the subject still wins.
func (p *Pipeline) inheritIntent(fresh *IntentResult, prior ConversationTurn) *IntentResult {
	if prior.Intent == "" || prior.Intent == IntentUnknown {
		return fresh
	}
	if tier := p.class.TierOf(fresh.Intent); tier == 1 || tier == 2 {
		return fresh
	}
	return &IntentResult{
		Intent:     prior.Intent,
		Confidence: fresh.Confidence,
		Matched:    fresh.Matched,
		Fuzzy:      fresh.Fuzzy,
		Params:     fresh.Params,
	}
}

// submitFeedback journals the classification outcome without blocking the
// request.
func (p *Pipeline) submitFeedback(userID, text string, intent *IntentResult, decision *RoutingDecision, followUp bool) {
	rec := feedback.Record{
		Timestamp:  time.Now().UTC(),
		UserID:     userID,
		Query:      text,
		Intent:     intent.Intent,
		Confidence: intent.Confidence,
		Task:       decision.Task,
		Source:     decision.RouteSource,
	}
	if followUp {
		rec.Notes = "followup"
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
		defer cancel()
		if err := p.sink.Submit(ctx, rec); err != nil {
			p.logger.Warn("feedback submit", slog.String("error", err.Error()))
		}
	}()
}
