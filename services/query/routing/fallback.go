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
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var fallbackTracer = otel.Tracer("fleetquery.query.routing.fallback")

// Fallback confidence levels. These are fixed policy values, distinct from
// the deterministic router's threshold table.
const (
	fallbackStrongSQLConfidence = 0.8
	fallbackWeakSQLConfidence   = 0.75
	fallbackDefaultConfidence   = 0.5
)

// strongSQLPatterns are seven pattern families any one of which marks a
// query as answerable from structured data: retrieval verbs, table/column
// nouns, aggregation verbs, domain nouns, temporal nouns, comparison words,
// filter prepositions.
var strongSQLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(show|list|display|fetch|get|give|select|retrieve)\b`),
	regexp.MustCompile(`\b(table|column|row|record|field|entry|entries)\b`),
	regexp.MustCompile(`\b(sum|total|count|average|max(imum)?|min(imum)?|aggregate)\b`),
	regexp.MustCompile(`\b(trip|load|haul|ton(ne)?s?|production|tipper|excavator|dumper|dozer|truck|shift|equipment|fleet)\b`),
	regexp.MustCompile(`\b(today|yesterday|week|month|year|quarter|daily|weekly|monthly|date)\b`),
	regexp.MustCompile(`\b(compare|versus|vs|difference|more\s+than|less\s+than|highest|lowest|top|bottom)\b`),
	regexp.MustCompile(`\b(where|with|for|between|above|below|over|under|by)\b`),
}

var (
	fallbackAdvisoryRe = regexp.MustCompile(`\b(how\s+(do|to|should|can)\b|why|recommend|advice|best\s+practice|procedure|guideline|explain)\b`)
	fallbackOptimizeRe = regexp.MustCompile(`\b(optimi[sz]e|allocat\w*|forecast\w*|predict\w*|minimum\s+(number|fleet))\b`)
	weakSQLRe          = regexp.MustCompile(`\b(data|report|summary|number|value|amount|figure)s?\b`)
)

// meaningfulSingleWords are lone words that still carry operational meaning
// and should not trigger the too-short rejection.
var meaningfulSingleWords = map[string]bool{
	"production": true, "trips": true, "summary": true, "forecast": true,
	"optimize": true, "tippers": true, "excavators": true, "shifts": true,
	"help": true, "report": true,
}

// FallbackRouter is the heuristic last resort for queries no deterministic
// rule claimed. It reads raw text only and always produces a decision.
type FallbackRouter struct {
	logger *slog.Logger
}

// NewFallbackRouter creates a FallbackRouter.
func NewFallbackRouter(logger *slog.Logger) *FallbackRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackRouter{logger: logger}
}

// Route classifies text heuristically. Never returns nil.
//
// # Description
//
// Too-short or meaningless input is routed to rag with an explicit "ask a
// fuller question" reason rather than silently dropped. The final default is
// rag at deliberately low confidence with RouteSourceLLM, signalling the
// caller to defer to a smarter resolver.
func (f *FallbackRouter) Route(ctx context.Context, text string) *RoutingDecision {
	_, span := fallbackTracer.Start(ctx, "routing.FallbackRouter.Route")
	defer span.End()

	decision := f.route(text)
	span.SetAttributes(
		attribute.String("task", decision.Task),
		attribute.Float64("confidence", decision.Confidence),
	)
	fallbackTotal.WithLabelValues(decision.Task).Inc()

	f.logger.Debug("fallback route",
		slog.String("task", decision.Task),
		slog.Float64("confidence", decision.Confidence),
		slog.String("reason", decision.Reason),
	)
	return decision
}

func (f *FallbackRouter) route(text string) *RoutingDecision {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	words := strings.Fields(lower)

	if len(trimmed) < 2 || (len(words) == 1 && !meaningfulSingleWords[words[0]]) {
		return &RoutingDecision{
			Task:        TaskRAG,
			Confidence:  fallbackDefaultConfidence,
			Reason:      "query too short to interpret; please ask a fuller question",
			RouteSource: RouteSourceDeterministic,
			Namespaces:  advisoryNamespaces,
		}
	}

	if fallbackAdvisoryRe.MatchString(lower) {
		return &RoutingDecision{
			Task:        TaskRAG,
			Confidence:  fallbackStrongSQLConfidence,
			Reason:      "advisory phrasing",
			RouteSource: RouteSourceDeterministic,
			Namespaces:  advisoryNamespaces,
		}
	}

	if fallbackOptimizeRe.MatchString(lower) {
		return &RoutingDecision{
			Task:        TaskOptimize,
			Confidence:  fallbackStrongSQLConfidence,
			Reason:      "optimization phrasing",
			RouteSource: RouteSourceDeterministic,
			Template:    TemplateEquipOptimum,
		}
	}

	for _, re := range strongSQLPatterns {
		if re.MatchString(lower) {
			return &RoutingDecision{
				Task:        TaskSQL,
				Confidence:  fallbackStrongSQLConfidence,
				Reason:      "strong structured-data indicator",
				RouteSource: RouteSourceDeterministic,
				Template:    TemplateGeneric,
			}
		}
	}

	if weakSQLRe.MatchString(lower) {
		return &RoutingDecision{
			Task:        TaskSQL,
			Confidence:  fallbackWeakSQLConfidence,
			Reason:      "weak structured-data indicator",
			RouteSource: RouteSourceDeterministic,
			Template:    TemplateGeneric,
		}
	}

	// Deliberately low confidence: uncertain, defer to a smarter resolver.
	return &RoutingDecision{
		Task:        TaskRAG,
		Confidence:  fallbackDefaultConfidence,
		Reason:      "no routing signal matched",
		RouteSource: RouteSourceLLM,
		Namespaces:  advisoryNamespaces,
	}
}
