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
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var followupTracer = otel.Tracer("fleetquery.query.routing.followup")

// followUpThreshold is the minimum weighted confidence to declare a
// continuation.
const followUpThreshold = 0.5

// Weighted confidence components.
const (
	followUpPatternWeight     = 0.6
	followUpBrevityWeight     = 0.2
	followUpNoQuestionWeight  = 0.1
	followUpConjunctionWeight = 0.1

	followUpBrevityMaxWords = 8
)

// standalonePatterns force isFollowUp = false regardless of brevity: the
// user is clearly starting a fresh question.
var standalonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(show|list|display|give\s+me|what\s+is|what\s+are|which|how\s+many|how\s+much)\b.{15,}`),
	regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`),
	regexp.MustCompile(`(?i)\bshift\s*-?\s*[abc123]\b`),
	regexp.MustCompile(`(?i)\b\d{4}-\d{2}-\d{2}\b`),
}

// continuationPatterns signal the turn only makes sense against the prior
// one.
var continuationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(and|but|also|then|so|or)\b`),
	regexp.MustCompile(`(?i)^\s*what\s+if\b`),
	regexp.MustCompile(`(?i)^\s*what\s+about\b`),
	regexp.MustCompile(`(?i)\bwith\s+only\s+\d+`),
	regexp.MustCompile(`(?i)^\s*(yes|no|yeah|nope|ok(ay)?|sure)\b`),
	regexp.MustCompile(`(?i)^\s*[abc]\s*$`),
	regexp.MustCompile(`(?i)^\s*\d[\d,.]*\s*(ton(ne)?s?|trips?|loads?|hours?)?\b`),
	regexp.MustCompile(`(?i)\b(already\s+(mined|hauled|done|completed)|broke\s+down|broken\s+down|out\s+of\s+service|unavailable|not\s+available)\b`),
	regexp.MustCompile(`(?i)\b(instead|same\s+but|this\s+time)\b`),
}

var (
	remainingTripsRe = regexp.MustCompile(`(?i)\b(\d[\d,]*)\s+(?:more\s+)?trips?\s+(?:left|remaining|to\s+go)\b|\bremaining\s+(\d[\d,]*)\s+trips?\b`)
	minedAmountRe    = regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(ton(?:ne)?s?|kg|m3|cubic\s+meters?)\s+(?:already\s+)?(?:mined|hauled|moved|done|completed)\b`)
	breakdownRe      = regexp.MustCompile(`(?i)\b([A-Za-z]{2,4}-\d{1,5})\s+(?:broke\s+down|is\s+(?:broken|down|unavailable|out\s+of\s+service)|not\s+available)\b`)
	limitRe          = regexp.MustCompile(`(?i)\b(?:with\s+)?(only|at\s+least)\s+(\d[\d,]*)\s+(tippers?|excavators?|dumpers?|dozers?|trucks?|machines?|trips?|hours?)\b`)
	bareShiftRe      = regexp.MustCompile(`(?i)\b(?:shift\s*-?\s*)?([abc123])\b`)
)

// FollowUpResolver decides whether a turn continues the stored conversation
// and, when it does, merges inherited parameters under the new ones.
//
// # Thread Safety
//
// Safe for concurrent use; the store handles its own locking and the
// resolver itself is stateless beyond it.
type FollowUpResolver struct {
	store     *ContextStore
	extractor *Extractor
	logger    *slog.Logger
}

// NewFollowUpResolver creates a resolver over the given context store.
func NewFollowUpResolver(store *ContextStore, extractor *Extractor, logger *slog.Logger) *FollowUpResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowUpResolver{store: store, extractor: extractor, logger: logger}
}

// Resolve inspects the turn against the user's stored context.
//
// # Outputs
//
//   - params: The merged parameter set when the turn is a follow-up
//     (previous turn as base, new constraints as override), or a zero
//     ParameterSet otherwise.
//   - prior: The stored turn the follow-up continues. Zero when not a
//     follow-up.
//   - isFollowUp: Whether the turn was resolved as a continuation.
func (r *FollowUpResolver) Resolve(ctx context.Context, userID, text string) (params ParameterSet, prior ConversationTurn, isFollowUp bool) {
	_, span := followupTracer.Start(ctx, "routing.FollowUpResolver.Resolve")
	defer span.End()

	stored, ok := r.store.Get(userID)
	if !ok {
		span.SetAttributes(attribute.Bool("followup", false))
		return ParameterSet{}, ConversationTurn{}, false
	}

	confidence := followUpConfidence(text)
	span.SetAttributes(
		attribute.Bool("followup", confidence >= followUpThreshold),
		attribute.Float64("followup_confidence", confidence),
	)
	if confidence < followUpThreshold {
		return ParameterSet{}, ConversationTurn{}, false
	}

	followupDetectedTotal.Inc()
	constraints := r.extractConstraints(text)
	merged := stored.Params.Merge(constraints)

	r.logger.Debug("follow-up resolved",
		slog.String("user_id", userID),
		slog.Float64("confidence", confidence),
		slog.String("prior_intent", stored.Intent),
	)
	return merged, stored, true
}

// followUpConfidence computes the weighted continuation score for a turn
// that has active context.
func followUpConfidence(text string) float64 {
	trimmed := strings.TrimSpace(text)
	for _, re := range standalonePatterns {
		if re.MatchString(trimmed) {
			return 0
		}
	}

	score := 0.0
	for _, re := range continuationPatterns {
		if re.MatchString(trimmed) {
			score += followUpPatternWeight
			break
		}
	}
	if len(strings.Fields(trimmed)) <= followUpBrevityMaxWords {
		score += followUpBrevityWeight
	}
	lower := strings.ToLower(trimmed)
	if !strings.Contains(trimmed, "?") && !strings.HasPrefix(lower, "show") {
		score += followUpNoQuestionWeight
	}
	if strings.HasPrefix(lower, "and ") || strings.HasPrefix(lower, "but ") {
		score += followUpConjunctionWeight
	}
	return score
}

// extractConstraints pulls follow-up-specific constraint updates out of the
// turn text: shift mentions, remaining trips, partial progress with units,
// equipment-breakdown exclusions, and only/at-least limits.
func (r *FollowUpResolver) extractConstraints(text string) ParameterSet {
	out := r.extractor.Extract(text)
	extras := map[string]any{}
	for k, v := range out.Extras {
		extras[k] = v
	}

	if m := remainingTripsRe.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if n, err := strconv.Atoi(strings.ReplaceAll(raw, ",", "")); err == nil {
			extras["remaining_trips"] = n
		}
	}

	if m := minedAmountRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			extras["mined_amount"] = v
			extras["mined_unit"] = normalizeUnit(m[2])
		}
	}

	if broken := breakdownRe.FindAllStringSubmatch(text, -1); broken != nil {
		var ids []string
		seen := map[string]bool{}
		for _, m := range broken {
			id := strings.ToUpper(m[1])
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		extras["exclude_equipment"] = ids

		// A broken-down machine is a constraint, not a query subject.
		var kept []string
		for _, id := range out.EquipmentIDs {
			if !seen[id] {
				kept = append(kept, id)
			}
		}
		out.EquipmentIDs = kept
	}

	if m := limitRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[2], ",", "")); err == nil {
			kind := "max"
			if strings.EqualFold(strings.Join(strings.Fields(m[1]), " "), "at least") {
				kind = "min"
			}
			extras["equipment_limit"] = map[string]any{
				"kind": kind,
				"n":    n,
				"unit": strings.ToLower(m[3]),
			}
		}
	}

	if len(out.Shifts) == 0 && looksLikeShiftMention(text) {
		if m := bareShiftRe.FindStringSubmatch(text); m != nil {
			if letter := shiftLetter[strings.ToLower(m[1])]; letter != "" {
				out.Shifts = []string{letter}
				out.ShiftCount = 1
			}
		}
	}

	if len(extras) > 0 {
		out.Extras = extras
	}
	return out
}

// looksLikeShiftMention guards the bare-letter shift pattern: a lone "a" in
// running prose is almost always the article, so require either the word
// "shift" nearby or the whole turn to be a bare letter/numeral reply.
func looksLikeShiftMention(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(lower, "shift") {
		return true
	}
	return len(lower) == 1 && strings.ContainsAny(lower, "abc123")
}

func normalizeUnit(unit string) string {
	u := strings.ToLower(strings.Join(strings.Fields(unit), " "))
	switch u {
	case "ton", "tons", "tonne", "tonnes":
		return "tons"
	case "cubic meter", "cubic meters":
		return "m3"
	default:
		return u
	}
}
