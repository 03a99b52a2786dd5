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
	"sort"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openpitiq/fleetquery/services/query/config"
)

var classifierTracer = otel.Tracer("fleetquery.query.routing.classifier")

// =============================================================================
// Scoring Constants
// =============================================================================

const (
	// keywordWordWeight is the per-word weight of a matched keyword.
	keywordWordWeight = 3.0

	// phraseBonus rewards an exact multi-word phrase boundary match.
	phraseBonus = 5.0

	// highSignalBonus rewards the configured high-discriminating phrases.
	highSignalBonus = 4.0

	// fuzzyDiscount discounts fuzzy matches to 95% of the exact weight.
	fuzzyDiscount = 0.95

	// ratioBoostThreshold and ratioBoostMinMatches gate the coverage boost:
	// an intent whose vocabulary appears broadly (not just one keyword)
	// earns ratioBoost.
	ratioBoostThreshold  = 0.3
	ratioBoostMinMatches = 2
	ratioBoost           = 1.2

	// statAmplification multiplies the statistical candidate's score when a
	// statistical keyword fires; competitors are removed outright.
	statAmplification = 2.5

	// ambiguityFloor and ambiguitySlope shape the penalty
	// confidence *= ambiguityFloor + (1-ratio)*ambiguitySlope.
	ambiguityFloor = 0.6
	ambiguitySlope = 0.4
)

// Intent names the classifier's exclusion and disambiguation rules key on.
const (
	intentStatistical          = "STATISTICAL_ANALYSIS"
	intentMonthlySummary       = "MONTHLY_SUMMARY"
	intentProductionSummary    = "PRODUCTION_SUMMARY"
	intentGeneralQuery         = "GENERAL_QUERY"
	intentEquipmentCombination = "EQUIPMENT_COMBINATION"
	intentEquipmentOptimize    = "EQUIPMENT_OPTIMIZATION"
)

// =============================================================================
// Classifier
// =============================================================================

// Classifier scores every known intent against a query and resolves one
// winner with a calibrated confidence.
//
// # Description
//
// The pipeline is: tiered keyword scoring → cross-intent exclusion rules →
// tier filtering → deterministic sort → named disambiguation rules →
// confidence calibration with an ambiguity penalty. Every step is pure over
// read-only tables, so identical input always yields an identical result.
//
// # Thread Safety
//
// Safe for concurrent use. The intent definitions are held behind an atomic
// pointer so a config hot reload can swap them without pausing
// classification; each Classify call snapshots one rule set for its whole
// run.
type Classifier struct {
	cfg        atomic.Pointer[config.IntentConfig]
	thresholds *config.Thresholds
	matcher    *Matcher
	logger     *slog.Logger
}

// NewClassifier creates a Classifier over the given intent definitions and
// confidence policy.
//
// # Inputs
//
//   - cfg: Validated intent definitions. Must not be nil.
//   - thresholds: Confidence policy table. Must not be nil.
//   - logger: Logger for classification diagnostics. May be nil.
func NewClassifier(cfg *config.IntentConfig, thresholds *config.Thresholds, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{
		thresholds: thresholds,
		matcher:    NewMatcher(),
		logger:     logger,
	}
	c.cfg.Store(cfg)
	return c
}

// SetConfig swaps the intent definitions in place. In-flight Classify calls
// finish on the rule set they started with. A nil cfg is ignored.
func (c *Classifier) SetConfig(cfg *config.IntentConfig) {
	if cfg == nil {
		return
	}
	c.cfg.Store(cfg)
}

// TierOf returns the configured tier for an intent name, or 0 when the name
// is not in the active rule set.
func (c *Classifier) TierOf(name string) int {
	if def := c.cfg.Load().ByName(name); def != nil {
		return def.Tier
	}
	return 0
}

// Classify resolves the intent for a query.
//
// # Description
//
// Returns a fresh IntentResult per call; never errors. A query that matches
// no intent and carries no inferable parameters resolves to IntentUnknown
// with confidence 0 — a valid terminal classification, not a failure.
//
// # Inputs
//
//   - ctx: Context for tracing.
//   - text: Raw query text.
//   - params: Parameters already extracted from the same text. Exclusion
//     rules read them (e.g. a specific date suppresses the generic monthly
//     summary candidate).
func (c *Classifier) Classify(ctx context.Context, text string, params ParameterSet) *IntentResult {
	_, span := classifierTracer.Start(ctx, "routing.Classifier.Classify")
	defer span.End()

	cfg := c.cfg.Load()
	candidates := c.scoreAll(cfg, text)
	candidates = c.applyExclusions(cfg, text, params, candidates)
	candidates = filterTiers(candidates)
	sortCandidates(candidates)
	candidates = c.disambiguate(text, candidates)

	if len(candidates) == 0 {
		span.SetAttributes(attribute.String("intent", IntentUnknown))
		classifierIntentTotal.WithLabelValues(IntentUnknown).Inc()
		return &IntentResult{
			Intent:     IntentUnknown,
			Confidence: 0,
			Matched:    []string{},
			Params:     params,
		}
	}

	best := candidates[0]
	confidence := c.calibrate(best, candidates)

	span.SetAttributes(
		attribute.String("intent", best.Intent),
		attribute.Float64("confidence", confidence),
		attribute.Int("candidates", len(candidates)),
	)
	classifierIntentTotal.WithLabelValues(best.Intent).Inc()

	c.logger.Debug("intent classified",
		slog.String("intent", best.Intent),
		slog.Float64("confidence", confidence),
		slog.Int("tier", best.Tier),
		slog.Int("matched", len(best.Matched)),
	)

	return &IntentResult{
		Intent:     best.Intent,
		Confidence: confidence,
		Matched:    best.Matched,
		Fuzzy:      best.Fuzzy,
		Params:     params,
	}
}

// =============================================================================
// Scoring
// =============================================================================

// scoreAll scores every configured intent. Only candidates with a positive
// score survive.
func (c *Classifier) scoreAll(cfg *config.IntentConfig, text string) []IntentCandidate {
	var out []IntentCandidate
	for _, def := range cfg.Intents {
		cand := c.scoreIntent(cfg, text, def)
		if cand.Score > 0 {
			out = append(out, cand)
		}
	}
	return out
}

// scoreIntent accumulates the weight of every matching keyword for one
// intent definition.
func (c *Classifier) scoreIntent(cfg *config.IntentConfig, text string, def config.IntentDef) IntentCandidate {
	cand := IntentCandidate{Intent: def.Name, Tier: def.Tier}

	for _, kw := range def.Keywords {
		matched, fuzzy := c.matcher.Match(text, kw)
		if !matched {
			continue
		}

		words := len(strings.Fields(kw))
		weight := float64(words) * keywordWordWeight
		if words > 1 && !fuzzy {
			weight += phraseBonus
		}
		if isHighSignal(cfg, kw) {
			weight += highSignalBonus
		}
		if fuzzy {
			weight *= fuzzyDiscount
			cand.Fuzzy = append(cand.Fuzzy, kw)
		}

		cand.Score += weight
		cand.Matched = append(cand.Matched, kw)
	}

	// Coverage boost: reward intents where a large fraction of the
	// vocabulary appears, not just any single keyword.
	if len(def.Keywords) > 0 {
		ratio := float64(len(cand.Matched)) / float64(len(def.Keywords))
		if ratio >= ratioBoostThreshold && len(cand.Matched) >= ratioBoostMinMatches {
			cand.Score *= ratioBoost
		}
	}
	return cand
}

func isHighSignal(cfg *config.IntentConfig, kw string) bool {
	for _, p := range cfg.HighSignalPhrases {
		if strings.EqualFold(p, kw) {
			return true
		}
	}
	return false
}

// =============================================================================
// Exclusion Rules
// =============================================================================

// applyExclusions runs domain-specific cross-intent rules after scoring and
// before selection.
func (c *Classifier) applyExclusions(cfg *config.IntentConfig, text string, params ParameterSet, candidates []IntentCandidate) []IntentCandidate {
	// A specific date mention suppresses the generic monthly summary: the
	// user is scoping, not asking for the canned month report.
	if params.Date != nil && (params.Date.Kind == DateSingle || params.Date.Kind == DateRange) {
		candidates = removeCandidate(candidates, intentMonthlySummary)
	}

	// A statistical keyword hit removes competing generic aggregation
	// candidates entirely and amplifies the statistical candidate.
	if c.hasStatisticalKeyword(cfg, text) {
		candidates = removeCandidate(candidates, intentProductionSummary)
		candidates = removeCandidate(candidates, intentMonthlySummary)
		candidates = removeCandidate(candidates, intentGeneralQuery)
		for i := range candidates {
			if candidates[i].Intent == intentStatistical {
				candidates[i].Score *= statAmplification
			}
		}
	}

	return candidates
}

func (c *Classifier) hasStatisticalKeyword(cfg *config.IntentConfig, text string) bool {
	for _, kw := range cfg.StatisticalKeywords {
		if c.matcher.Matches(text, kw) {
			return true
		}
	}
	return false
}

func removeCandidate(candidates []IntentCandidate, intent string) []IntentCandidate {
	out := candidates[:0]
	for _, cand := range candidates {
		if cand.Intent != intent {
			out = append(out, cand)
		}
	}
	return out
}

// filterTiers drops all tier-3 (generic) candidates whenever any tier-1 or
// tier-2 candidate exists: specific intents always dominate generic ones
// regardless of raw score.
func filterTiers(candidates []IntentCandidate) []IntentCandidate {
	hasSpecific := false
	for _, cand := range candidates {
		if cand.Tier < 3 {
			hasSpecific = true
			break
		}
	}
	if !hasSpecific {
		return candidates
	}
	out := candidates[:0]
	for _, cand := range candidates {
		if cand.Tier < 3 {
			out = append(out, cand)
		}
	}
	return out
}

// =============================================================================
// Selection
// =============================================================================

// sortCandidates orders candidates by (score desc, tier asc, matched-keyword
// count desc, total matched-keyword length desc, intent name). The final
// lexicographic tiebreak guarantees total determinism when every other
// signal ties.
func sortCandidates(candidates []IntentCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if len(a.Matched) != len(b.Matched) {
			return len(a.Matched) > len(b.Matched)
		}
		la, lb := totalLen(a.Matched), totalLen(b.Matched)
		if la != lb {
			return la > lb
		}
		return a.Intent < b.Intent
	})
}

func totalLen(words []string) int {
	n := 0
	for _, w := range words {
		n += len(w)
	}
	return n
}

// optimizationVerbs and actionVerbs drive the combination/optimization
// disambiguation below.
var (
	optimizationVerbs = []string{"optimize", "optimise", "minimize", "minimise", "allocate", "needed", "should use", "how many"}
	actionVerbs       = []string{"worked", "paired", "operated", "hauled", "loaded"}
)

// disambiguate resolves specific known intent collisions after the sort.
//
// Currently one named rule: an EQUIPMENT_COMBINATION top pick is overridden
// to EQUIPMENT_OPTIMIZATION when optimization verbs are present and no
// past-tense action verb ("worked", "paired") anchors the query to history.
func (c *Classifier) disambiguate(text string, candidates []IntentCandidate) []IntentCandidate {
	if len(candidates) == 0 || candidates[0].Intent != intentEquipmentCombination {
		return candidates
	}

	lower := strings.ToLower(text)
	hasOptVerb := false
	for _, v := range optimizationVerbs {
		if strings.Contains(lower, v) {
			hasOptVerb = true
			break
		}
	}
	if !hasOptVerb {
		return candidates
	}
	for _, v := range actionVerbs {
		if strings.Contains(lower, v) {
			return candidates
		}
	}

	// Promote the optimization candidate if present; otherwise relabel the
	// top pick so the router sees the optimization intent.
	for i := range candidates {
		if candidates[i].Intent == intentEquipmentOptimize {
			candidates[0], candidates[i] = candidates[i], candidates[0]
			return candidates
		}
	}
	candidates[0].Intent = intentEquipmentOptimize
	return candidates
}

// =============================================================================
// Confidence Calibration
// =============================================================================

// calibrate normalizes the winner's score against its tier ceiling and
// applies the ambiguity penalty when the runner-up scored too close.
func (c *Classifier) calibrate(best IntentCandidate, candidates []IntentCandidate) float64 {
	confidence := best.Score / c.thresholds.TierMax(best.Tier)
	if confidence > 1 {
		confidence = 1
	}

	if len(candidates) > 1 && best.Score > 0 {
		ratio := candidates[1].Score / best.Score
		if ratio > c.thresholds.AmbiguityRatio {
			confidence *= ambiguityFloor + (1-ratio)*ambiguitySlope
			if confidence > c.thresholds.AmbiguityCap {
				confidence = c.thresholds.AmbiguityCap
			}
			classifierAmbiguousTotal.Inc()
		}
	}

	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
