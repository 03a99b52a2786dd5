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

	"github.com/openpitiq/fleetquery/services/query/config"
)

var routerTracer = otel.Tracer("fleetquery.query.routing.router")

// Template identifiers handed to the downstream SQL builder. They name the
// shape of query to generate, not a literal SQL string.
const (
	TemplateStatistical   = "statistical_analysis"
	TemplateTargetOptimum = "target_optimization"
	TemplateEquipOptimum  = "equipment_optimization"
	TemplateCombination   = "equipment_combination"
	TemplateShiftCompare  = "shift_comparison"
	TemplateMonthCompare  = "month_comparison"
	TemplateVisualization = "visualization_aggregate"
	TemplateTripLevel     = "trip_level"
	TemplateCalculation   = "calculation_aggregate"
	TemplateOrdinalRow    = "ordinal_row"
	TemplateEquipmentScan = "equipment_scan"
	TemplateTimeScoped    = "time_scoped"
	TemplateGeneric       = "generic_select"
)

// Namespaces the document-retrieval answerer searches for rag decisions.
var advisoryNamespaces = []string{"operations-manual", "maintenance-guides", "safety-procedures"}

// =============================================================================
// Rule Cascade
// =============================================================================

// routeRule pairs a predicate with a decision builder. Rules are evaluated
// in slice order; the first predicate that fires wins and no later rule is
// consulted.
type routeRule struct {
	name  string
	match func(in routeInput) bool
	build func(in routeInput) *RoutingDecision
}

type routeInput struct {
	text   string
	lower  string
	intent *IntentResult
	params ParameterSet
}

// Router maps a resolved intent plus extracted parameters to a routing
// decision through a priority-ordered rule cascade.
//
// # Description
//
// Priority is data, not code order inside a conditional: the cascade is an
// explicit ordered slice, so tests can assert on rule names and the order
// can be audited in one place. If no rule fires, Route returns nil — the
// caller escalates to the fallback router.
//
// # Thread Safety
//
// Safe for concurrent use; the rule table is built once and never mutated.
type Router struct {
	rules      []routeRule
	thresholds *config.Thresholds
	logger     *slog.Logger
}

// NewRouter builds the rule cascade.
func NewRouter(thresholds *config.Thresholds, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{thresholds: thresholds, logger: logger}
	r.rules = r.buildRules()
	return r
}

// Route evaluates the cascade. A nil return means no deterministic rule
// applied; it is not an error.
func (r *Router) Route(ctx context.Context, text string, intent *IntentResult, params ParameterSet) *RoutingDecision {
	_, span := routerTracer.Start(ctx, "routing.Router.Route")
	defer span.End()

	in := routeInput{
		text:   text,
		lower:  strings.ToLower(text),
		intent: intent,
		params: params,
	}

	for _, rule := range r.rules {
		if !rule.match(in) {
			continue
		}
		decision := rule.build(in)
		decision.RouteSource = RouteSourceDeterministic
		decision.Intent = intent.Intent
		decision.Params = params.Clone()

		span.SetAttributes(
			attribute.String("rule", rule.name),
			attribute.String("task", decision.Task),
		)
		routerDecisionTotal.WithLabelValues(decision.Task, decision.RouteSource).Inc()

		r.logger.Debug("deterministic route",
			slog.String("rule", rule.name),
			slog.String("task", decision.Task),
			slog.Float64("confidence", decision.Confidence),
		)
		return decision
	}

	span.SetAttributes(attribute.Bool("matched", false))
	return nil
}

// =============================================================================
// Rule Table
// =============================================================================

var (
	statOpRe      = regexp.MustCompile(`\b(mean|median|mode|average|standard\s+deviation|std\s*dev(iation)?|variance|percentile|correlation)\b`)
	advisoryRe    = regexp.MustCompile(`\b(how\s+(do|to|should|can)\b|best\s+practice|procedure|guideline|recommend|advice|maintenance\s+schedule|safety)\b`)
	optimizeRe    = regexp.MustCompile(`\b(optimi[sz]e|allocat\w*|forecast\w*|predict\w*|how\s+many\s+\w+\s+(do\s+i\s+|are\s+)?need\w*|minimum\s+(number|fleet))\b`)
	visualRe      = regexp.MustCompile(`\b(chart|graph|plot|visuali[sz]e|visuali[sz]ation|bar\s*chart|pie\s*chart|trend\s*line|histogram|heatmap)\b`)
	routeFaceRe   = regexp.MustCompile(`\b(route|haul\s*road|face|bench|pit|dump\s*(site|location)|loading\s+point)\b`)
	calculationRe = regexp.MustCompile(`\b(total|sum|count|how\s+much|how\s+many\s+trips|aggregate|overall|cumulative)\b`)
)

// trustedIntents maps intent names whose detection is more reliable than
// keyword re-scanning straight to a decision shape.
var trustedIntents = map[string]struct {
	task     string
	template string
	level    string
}{
	"TARGET_OPTIMIZATION":    {TaskOptimize, TemplateTargetOptimum, config.DecisionCertain},
	"EQUIPMENT_OPTIMIZATION": {TaskOptimize, TemplateEquipOptimum, config.DecisionCertain},
	"EQUIPMENT_COMBINATION":  {TaskSQL, TemplateCombination, config.DecisionHigh},
	"SHIFT_COMPARISON":       {TaskSQL, TemplateShiftCompare, config.DecisionHigh},
	"MONTH_COMPARISON":       {TaskSQL, TemplateMonthCompare, config.DecisionHigh},
}

func (r *Router) buildRules() []routeRule {
	return []routeRule{
		{
			// Statistical phrasing must never be misrouted to generic
			// aggregation, regardless of other keyword overlap.
			name: "statistical",
			match: func(in routeInput) bool {
				return statOpRe.MatchString(in.lower)
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskSQL,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionCertain),
					Reason:     "statistical operation requested",
					Template:   TemplateStatistical,
					StatOps:    statOps(in.lower),
				}
			},
		},
		{
			name: "trusted_intent",
			match: func(in routeInput) bool {
				_, ok := trustedIntents[in.intent.Intent]
				return ok
			},
			build: func(in routeInput) *RoutingDecision {
				t := trustedIntents[in.intent.Intent]
				return &RoutingDecision{
					Task:       t.task,
					Confidence: r.thresholds.DecisionConfidence(t.level),
					Reason:     "trusted intent " + in.intent.Intent,
					Template:   t.template,
				}
			},
		},
		{
			name: "advisory",
			match: func(in routeInput) bool {
				return advisoryRe.MatchString(in.lower)
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskRAG,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionHigh),
					Reason:     "advisory or procedural question",
					Namespaces: advisoryNamespaces,
				}
			},
		},
		{
			name: "optimization",
			match: func(in routeInput) bool {
				return optimizeRe.MatchString(in.lower)
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskOptimize,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionHigh),
					Reason:     "optimization or forecasting request",
					Template:   TemplateEquipOptimum,
				}
			},
		},
		{
			// Charts always need aggregated data first.
			name: "visualization",
			match: func(in routeInput) bool {
				return visualRe.MatchString(in.lower)
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskSQL,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionStrong),
					Reason:     "visualization request needs aggregated data",
					Template:   TemplateVisualization,
				}
			},
		},
		{
			name: "route_face",
			match: func(in routeInput) bool {
				return routeFaceRe.MatchString(in.lower)
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskSQL,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionStrong),
					Reason:     "route or face question answered from trip records",
					Template:   TemplateTripLevel,
				}
			},
		},
		{
			name: "calculation",
			match: func(in routeInput) bool {
				return calculationRe.MatchString(in.lower)
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskSQL,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionStrong),
					Reason:     "calculation or aggregation request",
					Template:   TemplateCalculation,
				}
			},
		},
		{
			name: "row_ordinal",
			match: func(in routeInput) bool {
				return in.params.RowNumber > 0
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskSQL,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionHigh),
					Reason:     "explicit row ordinal request",
					Template:   TemplateOrdinalRow,
				}
			},
		},
		{
			name: "equipment_ids",
			match: func(in routeInput) bool {
				return len(in.params.EquipmentIDs) > 0
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskSQL,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionStrong),
					Reason:     "named equipment identifiers present",
					Template:   TemplateEquipmentScan,
				}
			},
		},
		{
			name: "time_scoped",
			match: func(in routeInput) bool {
				return in.params.Date != nil
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskSQL,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionModerate),
					Reason:     "time-scoped data question",
					Template:   TemplateTimeScoped,
				}
			},
		},
		{
			name: "general_low_confidence",
			match: func(in routeInput) bool {
				return in.intent.Intent == intentGeneralQuery && in.intent.Confidence > 0
			},
			build: func(in routeInput) *RoutingDecision {
				return &RoutingDecision{
					Task:       TaskSQL,
					Confidence: r.thresholds.DecisionConfidence(config.DecisionWeak),
					Reason:     "generic data request",
					Template:   TemplateGeneric,
				}
			},
		},
	}
}

// statOps lists the statistical operations named in the text, in first
// mention order, normalized.
func statOps(lower string) []string {
	seen := map[string]bool{}
	var ops []string
	for _, m := range statOpRe.FindAllString(lower, -1) {
		op := strings.Join(strings.Fields(m), " ")
		switch op {
		case "average":
			op = "mean"
		case "std dev", "std deviation", "stddev":
			op = "standard deviation"
		}
		if !seen[op] {
			seen[op] = true
			ops = append(ops, op)
		}
	}
	return ops
}
