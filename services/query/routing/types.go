// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import "time"

// =============================================================================
// Task and Route Source Constants
// =============================================================================

// Task identifies the downstream engine a query is routed to.
const (
	// TaskSQL routes to the structured-query engine.
	TaskSQL = "sql"

	// TaskRAG routes to the document-retrieval answerer.
	TaskRAG = "rag"

	// TaskOptimize routes to the equipment-allocation optimizer.
	TaskOptimize = "optimize"
)

// Route source values for RoutingDecision.RouteSource.
const (
	// RouteSourceDeterministic marks decisions fully resolved by this core.
	RouteSourceDeterministic = "deterministic"

	// RouteSourceLLM marks decisions this core explicitly declines to make.
	// The caller is expected to escalate to an LLM-based resolver.
	RouteSourceLLM = "llm"
)

// IntentUnknown is the terminal classification for queries that match no
// intent definition and carry no inferable parameters. It is a valid result,
// not an error.
const IntentUnknown = "UNKNOWN"

// =============================================================================
// Parsed Date
// =============================================================================

// DateKind tags the variant of a ParsedDate.
type DateKind string

// Date kinds recognized by the extractor.
const (
	DateSingle   DateKind = "single"
	DateRange    DateKind = "range"
	DateQuarter  DateKind = "quarter"
	DateMonth    DateKind = "month"
	DateYear     DateKind = "year"
	DateRelative DateKind = "relative"
)

// ParsedDate is a tagged date variant extracted from query text.
//
// # Description
//
// Start and End are always populated as calendar dates (midnight UTC).
// Kind-specific fields (Quarter, Month, Year, RelativePeriod) are populated
// only for their own kind. Invariant: Start ≤ End always holds; month and
// quarter resolution yields the true last calendar day of the period,
// including February 29 in leap years.
type ParsedDate struct {
	Kind  DateKind  `json:"kind"`
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`

	// Quarter is 1-4 when Kind == DateQuarter.
	Quarter int `json:"quarter,omitempty"`

	// Month is 1-12 when Kind == DateMonth.
	Month int `json:"month,omitempty"`

	// Year is the resolved calendar year for quarter/month/year kinds.
	Year int `json:"year,omitempty"`

	// RelativePeriod names the relative expression ("last_month",
	// "last_7_days", "this_week") when Kind == DateRelative.
	RelativePeriod string `json:"relative_period,omitempty"`
}

// =============================================================================
// Parameter Set
// =============================================================================

// NumericFilter is a comparison constraint extracted from the query.
type NumericFilter struct {
	// Operator is one of >, <, >=, <=, =, between.
	Operator string `json:"operator"`

	// Value is the threshold, or the lower bound for "between".
	Value float64 `json:"value"`

	// UpperValue is the inclusive upper bound for "between". Zero otherwise.
	UpperValue float64 `json:"upper_value,omitempty"`
}

// RankRequest is a top-N / bottom-N ranking request.
type RankRequest struct {
	N int `json:"n"`

	// Type is "top" or "bottom".
	Type string `json:"rank_type"`
}

// Comparison holds two compared entities and the inferred comparison domain.
type Comparison struct {
	EntityA string `json:"entity_a"`
	EntityB string `json:"entity_b"`

	// Domain is one of equipment, month, shift, date.
	Domain string `json:"domain"`
}

// ParameterSet is the structured fields pulled out of raw query text.
//
// # Description
//
// Absence of a pattern simply leaves a field at its zero value; extraction
// has no failure mode. Slices are deduplicated with order of first mention
// preserved. Extras carries optimizer constraints and follow-up overrides
// (target, duration, mined_amount, exclude_equipment, remaining_trips,
// equipment_limit) that have no fixed schema.
type ParameterSet struct {
	Date         *ParsedDate    `json:"date,omitempty"`
	Shifts       []string       `json:"shift,omitempty"`
	ShiftCount   int            `json:"shift_count,omitempty"`
	GroupByShift bool           `json:"group_by_shift,omitempty"`
	EquipmentIDs []string       `json:"equipment_ids,omitempty"`
	Numeric      *NumericFilter `json:"numeric_filter,omitempty"`
	Rank         *RankRequest   `json:"rank,omitempty"`
	MachineTypes []string       `json:"machine_types,omitempty"`
	Comparison   *Comparison    `json:"comparison,omitempty"`

	// RowNumber is an explicit row-ordinal request ("19th row"). Zero = absent.
	RowNumber int `json:"row_number,omitempty"`

	Extras map[string]any `json:"extras,omitempty"`
}

// IsEmpty reports whether no field was populated.
func (p ParameterSet) IsEmpty() bool {
	return p.Date == nil &&
		len(p.Shifts) == 0 &&
		!p.GroupByShift &&
		len(p.EquipmentIDs) == 0 &&
		p.Numeric == nil &&
		p.Rank == nil &&
		len(p.MachineTypes) == 0 &&
		p.Comparison == nil &&
		p.RowNumber == 0 &&
		len(p.Extras) == 0
}

// Clone returns a deep copy. The copy shares no mutable state with the
// receiver, so per-request decisions can never alias stored context.
func (p ParameterSet) Clone() ParameterSet {
	out := p
	if p.Date != nil {
		d := *p.Date
		out.Date = &d
	}
	if p.Numeric != nil {
		n := *p.Numeric
		out.Numeric = &n
	}
	if p.Rank != nil {
		r := *p.Rank
		out.Rank = &r
	}
	if p.Comparison != nil {
		c := *p.Comparison
		out.Comparison = &c
	}
	if p.Shifts != nil {
		out.Shifts = append([]string(nil), p.Shifts...)
	}
	if p.EquipmentIDs != nil {
		out.EquipmentIDs = append([]string(nil), p.EquipmentIDs...)
	}
	if p.MachineTypes != nil {
		out.MachineTypes = append([]string(nil), p.MachineTypes...)
	}
	if p.Extras != nil {
		out.Extras = make(map[string]any, len(p.Extras))
		for k, v := range p.Extras {
			out.Extras[k] = v
		}
	}
	return out
}

// Merge overlays override onto the receiver and returns the result.
//
// # Description
//
// The receiver acts as the base (typically the previous turn's parameters)
// and override as the new extraction. New values always win on key collision;
// base values survive only where the override left the field empty.
func (p ParameterSet) Merge(override ParameterSet) ParameterSet {
	out := p.Clone()
	ov := override.Clone()

	if ov.Date != nil {
		out.Date = ov.Date
	}
	if len(ov.Shifts) > 0 {
		out.Shifts = ov.Shifts
		out.ShiftCount = ov.ShiftCount
	}
	if ov.GroupByShift {
		out.GroupByShift = true
	}
	if len(ov.EquipmentIDs) > 0 {
		out.EquipmentIDs = ov.EquipmentIDs
	}
	if ov.Numeric != nil {
		out.Numeric = ov.Numeric
	}
	if ov.Rank != nil {
		out.Rank = ov.Rank
	}
	if len(ov.MachineTypes) > 0 {
		out.MachineTypes = ov.MachineTypes
	}
	if ov.Comparison != nil {
		out.Comparison = ov.Comparison
	}
	if ov.RowNumber != 0 {
		out.RowNumber = ov.RowNumber
	}
	if len(ov.Extras) > 0 {
		if out.Extras == nil {
			out.Extras = make(map[string]any, len(ov.Extras))
		}
		for k, v := range ov.Extras {
			out.Extras[k] = v
		}
	}
	return out
}

// =============================================================================
// Classification Results
// =============================================================================

// IntentCandidate is a scored intent produced during classification.
// Only candidates with Score > 0 survive scoring.
type IntentCandidate struct {
	Intent string `json:"intent"`

	Score float64 `json:"score"`

	// Tier is the intent's specificity rank: 1 specific, 2 moderate, 3 generic.
	Tier int `json:"tier"`

	// Matched lists every keyword that matched, exact or fuzzy.
	Matched []string `json:"matched_keywords"`

	// Fuzzy is the subset of Matched that matched via similarity ratio.
	Fuzzy []string `json:"fuzzy_matches,omitempty"`
}

// IntentResult is the single resolved classification outcome.
// Created fresh per query; never mutated after return.
type IntentResult struct {
	Intent     string       `json:"intent"`
	Confidence float64      `json:"confidence"`
	Matched    []string     `json:"matched_keywords"`
	Fuzzy      []string     `json:"fuzzy_matches,omitempty"`
	Params     ParameterSet `json:"parameters"`
}

// RoutingDecision is the pipeline's sole output artifact.
type RoutingDecision struct {
	// Task is sql, rag, or optimize.
	Task string `json:"task"`

	Confidence float64 `json:"confidence"`

	// Reason is a human-readable explanation of why this rule fired.
	Reason string `json:"reason"`

	// RouteSource is deterministic or llm.
	RouteSource string `json:"route_source"`

	// Template identifies the downstream template the chosen engine should use.
	Template string `json:"template_used,omitempty"`

	Params ParameterSet `json:"parameters"`

	// Namespaces are the document namespaces for task == rag.
	Namespaces []string `json:"namespaces,omitempty"`

	// StatOps lists requested statistical operations for statistical queries.
	StatOps []string `json:"statistical_operations,omitempty"`

	// Intent is the resolved intent label the decision was derived from.
	Intent string `json:"intent"`
}

// =============================================================================
// Conversation Context
// =============================================================================

// ConversationTurn is one completed turn stored for follow-up resolution.
type ConversationTurn struct {
	Question      string       `json:"question"`
	Intent        string       `json:"intent"`
	Params        ParameterSet `json:"parameters"`
	AnswerExcerpt string       `json:"answer_excerpt,omitempty"`
}
