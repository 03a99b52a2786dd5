// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Parameter Extractor
// =============================================================================

// Extractor pulls structured fields out of raw query text.
//
// # Description
//
// Extraction has no side effects and no failure mode: absence of a pattern
// simply leaves the field at its zero value. All relative-date math uses the
// fixed reference date supplied at construction, so repeated calls on the
// same deployment are deterministic.
//
// # Thread Safety
//
// Extractor is read-only after construction and safe for concurrent use.
type Extractor struct {
	// now is the fixed "current date" reference for relative-date math.
	now time.Time
}

// NewExtractor creates an Extractor with the given reference date. The time
// component is truncated; only the calendar date matters.
func NewExtractor(ref time.Time) *Extractor {
	y, m, d := ref.Date()
	return &Extractor{now: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Extract returns the ParameterSet for the given text. Possibly empty, never
// an error.
func (e *Extractor) Extract(text string) ParameterSet {
	lower := strings.ToLower(text)

	var p ParameterSet
	p.Date = e.ExtractDate(lower)
	p.Shifts, p.GroupByShift = extractShifts(lower)
	p.ShiftCount = len(p.Shifts)
	p.EquipmentIDs = ExtractEquipmentIDs(text)
	p.Numeric = extractNumericFilter(lower)
	p.Rank = extractRank(lower)
	p.MachineTypes = extractMachineTypes(lower)
	p.RowNumber = extractRowNumber(lower)
	p.Comparison = e.extractComparison(text, lower)
	p.Extras = extractGoalExtras(lower)
	return p
}

// =============================================================================
// Date Extraction
// =============================================================================

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

var (
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dayMonthRe   = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthAlt + `)(?:\s+(\d{4}))?\b`)
	monthDayRe   = regexp.MustCompile(`\b(` + monthAlt + `)\s+(\d{1,2})(?:st|nd|rd|th)?(?:\s*,?\s*(\d{4}))?\b`)
	quarterRe    = regexp.MustCompile(`\b(?:q([1-4])|([1-4])(?:st|nd|rd|th)?\s+quarter|quarter\s+([1-4]))(?:\s+(?:of\s+)?(\d{4}))?\b`)
	monthRangeRe = regexp.MustCompile(`\bfrom\s+(` + monthAlt + `)(?:\s+(\d{4}))?\s+(?:to|until|till|through)\s+(` + monthAlt + `)(?:\s+(\d{4}))?\b`)
	lastNRe      = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s+(day|week|month|year)s?\b`)
	monthYearRe  = regexp.MustCompile(`\b(` + monthAlt + `)(?:\s+(\d{4}))?\b`)
	bareYearRe   = regexp.MustCompile(`\b(20\d{2})\b`)
)

// ExtractDate resolves a date expression from lowercase text.
//
// # Description
//
// Resolution tries, in strict priority order: explicit single date →
// quarter-with-optional-year → explicit month range → relative expressions →
// month-with-optional-year → bare four-digit year. The first match wins so
// specific patterns are never shadowed by looser ones ("from january to
// march 2024" must not degrade to a bare month match).
//
// A month without a year assumes the current calendar year unconditionally,
// even for future months.
func (e *Extractor) ExtractDate(lower string) *ParsedDate {
	if d := e.extractSingleDate(lower); d != nil {
		return d
	}
	if d := e.extractQuarter(lower); d != nil {
		return d
	}
	if d := e.extractMonthRange(lower); d != nil {
		return d
	}
	if d := e.extractRelative(lower); d != nil {
		return d
	}
	if d := e.extractMonth(lower); d != nil {
		return d
	}
	if d := e.extractYear(lower); d != nil {
		return d
	}
	return nil
}

func (e *Extractor) extractSingleDate(lower string) *ParsedDate {
	if m := isoDateRe.FindStringSubmatch(lower); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= daysIn(year, time.Month(month)) {
			d := date(year, time.Month(month), day)
			return &ParsedDate{Kind: DateSingle, Start: d, End: d, Year: year}
		}
	}
	if m := dayMonthRe.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := monthsByName[m[2]]
		year := e.now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		if day >= 1 && day <= daysIn(year, month) {
			d := date(year, month, day)
			return &ParsedDate{Kind: DateSingle, Start: d, End: d, Year: year}
		}
	}
	if m := monthDayRe.FindStringSubmatch(lower); m != nil {
		month := monthsByName[m[1]]
		day, _ := strconv.Atoi(m[2])
		year := e.now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		if day >= 1 && day <= daysIn(year, month) {
			d := date(year, month, day)
			return &ParsedDate{Kind: DateSingle, Start: d, End: d, Year: year}
		}
	}
	return nil
}

func (e *Extractor) extractQuarter(lower string) *ParsedDate {
	m := quarterRe.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	q := 0
	for _, g := range []string{m[1], m[2], m[3]} {
		if g != "" {
			q, _ = strconv.Atoi(g)
			break
		}
	}
	if q < 1 || q > 4 {
		return nil
	}
	year := e.now.Year()
	if m[4] != "" {
		year, _ = strconv.Atoi(m[4])
	}
	startMonth := time.Month((q-1)*3 + 1)
	endMonth := startMonth + 2
	return &ParsedDate{
		Kind:    DateQuarter,
		Start:   date(year, startMonth, 1),
		End:     lastDay(year, endMonth),
		Quarter: q,
		Year:    year,
	}
}

func (e *Extractor) extractMonthRange(lower string) *ParsedDate {
	m := monthRangeRe.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	startMonth := monthsByName[m[1]]
	endMonth := monthsByName[m[3]]

	endYear := e.now.Year()
	if m[4] != "" {
		endYear, _ = strconv.Atoi(m[4])
	}
	startYear := endYear
	if m[2] != "" {
		startYear, _ = strconv.Atoi(m[2])
	}

	start := date(startYear, startMonth, 1)
	end := lastDay(endYear, endMonth)
	if end.Before(start) {
		// "from november to february" with one year crosses the boundary.
		end = lastDay(endYear+1, endMonth)
	}
	return &ParsedDate{Kind: DateRange, Start: start, End: end}
}

func (e *Extractor) extractRelative(lower string) *ParsedDate {
	if m := lastNRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n <= 0 {
			return nil
		}
		end := e.now
		var start time.Time
		switch m[2] {
		case "day":
			start = end.AddDate(0, 0, -n)
		case "week":
			start = end.AddDate(0, 0, -7*n)
		case "month":
			start = end.AddDate(0, -n, 0)
		case "year":
			start = end.AddDate(-n, 0, 0)
		}
		return &ParsedDate{
			Kind:           DateRelative,
			Start:          start,
			End:            end,
			RelativePeriod: "last_" + m[1] + "_" + m[2] + "s",
		}
	}

	switch {
	case strings.Contains(lower, "last month"):
		prev := e.now.AddDate(0, -1, -e.now.Day()+1) // first of previous month
		return &ParsedDate{
			Kind:           DateRelative,
			Start:          date(prev.Year(), prev.Month(), 1),
			End:            lastDay(prev.Year(), prev.Month()),
			RelativePeriod: "last_month",
		}
	case strings.Contains(lower, "this month"):
		return &ParsedDate{
			Kind:           DateRelative,
			Start:          date(e.now.Year(), e.now.Month(), 1),
			End:            lastDay(e.now.Year(), e.now.Month()),
			RelativePeriod: "this_month",
		}
	case strings.Contains(lower, "last week"):
		// Monday..Sunday of the previous ISO week.
		weekday := int(e.now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		thisMonday := e.now.AddDate(0, 0, -(weekday - 1))
		return &ParsedDate{
			Kind:           DateRelative,
			Start:          thisMonday.AddDate(0, 0, -7),
			End:            thisMonday.AddDate(0, 0, -1),
			RelativePeriod: "last_week",
		}
	case strings.Contains(lower, "this week"):
		weekday := int(e.now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		monday := e.now.AddDate(0, 0, -(weekday - 1))
		return &ParsedDate{
			Kind:           DateRelative,
			Start:          monday,
			End:            e.now,
			RelativePeriod: "this_week",
		}
	case strings.Contains(lower, "last year"):
		y := e.now.Year() - 1
		return &ParsedDate{
			Kind:           DateRelative,
			Start:          date(y, time.January, 1),
			End:            date(y, time.December, 31),
			RelativePeriod: "last_year",
		}
	case strings.Contains(lower, "this year"):
		y := e.now.Year()
		return &ParsedDate{
			Kind:           DateRelative,
			Start:          date(y, time.January, 1),
			End:            date(y, time.December, 31),
			RelativePeriod: "this_year",
		}
	case strings.Contains(lower, "yesterday"):
		d := e.now.AddDate(0, 0, -1)
		return &ParsedDate{Kind: DateRelative, Start: d, End: d, RelativePeriod: "yesterday"}
	case strings.Contains(lower, "today"):
		return &ParsedDate{Kind: DateRelative, Start: e.now, End: e.now, RelativePeriod: "today"}
	}
	return nil
}

// mayScopedRe distinguishes the month of May from the modal verb. Bare "may"
// counts as a month only when a scoping cue sits next to it; "tippers may
// need maintenance" must not time-scope the query.
var mayScopedRe = regexp.MustCompile(`\b(?:in|for|during|of|since|until|till|through|from|and|vs\.?|versus|between|compare)\s+may\b|\bmay\s+\d`)

func (e *Extractor) extractMonth(lower string) *ParsedDate {
	for _, m := range monthYearRe.FindAllStringSubmatch(lower, -1) {
		if m[1] == "may" && m[2] == "" && !mayScopedRe.MatchString(lower) {
			// The modal verb, not the month.
			continue
		}
		month := monthsByName[m[1]]
		year := e.now.Year()
		if m[2] != "" {
			year, _ = strconv.Atoi(m[2])
		}
		return &ParsedDate{
			Kind:  DateMonth,
			Start: date(year, month, 1),
			End:   lastDay(year, month),
			Month: int(month),
			Year:  year,
		}
	}
	return nil
}

// quantityUnits are words that mark a four-digit number as a quantity, not a
// calendar year ("2000 tons" must not time-scope the query to the year 2000).
var quantityUnits = map[string]bool{
	"tons": true, "ton": true, "tonnes": true, "tonne": true, "t": true,
	"trips": true, "trip": true, "loads": true, "load": true,
	"meters": true, "metres": true, "km": true, "hours": true, "hrs": true,
}

func (e *Extractor) extractYear(lower string) *ParsedDate {
	// Both bounds of "between 2000 and 3000" are quantities, never years,
	// whether or not a unit word follows.
	betweenSpans := betweenRe.FindAllStringIndex(lower, -1)

	for _, loc := range bareYearRe.FindAllStringSubmatchIndex(lower, -1) {
		if insideAny(betweenSpans, loc[2], loc[3]) {
			continue
		}
		yearText := lower[loc[2]:loc[3]]

		rest := strings.TrimLeft(lower[loc[3]:], " ")
		next := rest
		if i := strings.IndexFunc(rest, isBoundary); i >= 0 {
			next = rest[:i]
		}
		if quantityUnits[next] {
			continue
		}

		year, _ := strconv.Atoi(yearText)
		return &ParsedDate{
			Kind:  DateYear,
			Start: date(year, time.January, 1),
			End:   date(year, time.December, 31),
			Year:  year,
		}
	}
	return nil
}

// insideAny reports whether the half-open interval [start, end) lies inside
// one of the spans.
func insideAny(spans [][]int, start, end int) bool {
	for _, s := range spans {
		if start >= s[0] && end <= s[1] {
			return true
		}
	}
	return false
}

// date builds a midnight-UTC calendar date.
func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// lastDay returns the true last calendar day of a month, leap-year aware.
func lastDay(year int, month time.Month) time.Time {
	return date(year, month, 1).AddDate(0, 1, -1)
}

// daysIn returns the number of days in a month.
func daysIn(year int, month time.Month) int {
	return lastDay(year, month).Day()
}

// =============================================================================
// Shift Extraction
// =============================================================================

var (
	shiftRe   = regexp.MustCompile(`\bshift\s*-?\s*([abc123])\b|\b([abc123])\s*-?\s*shift\b`)
	byShiftRe = regexp.MustCompile(`\b(?:by|per|each|every)\s+shift\b|\bshift\s*-?\s*wise\b`)
)

// shiftLetter normalizes numeral shift forms to letters: 1→A, 2→B, 3→C.
var shiftLetter = map[string]string{
	"a": "A", "b": "B", "c": "C",
	"1": "A", "2": "B", "3": "C",
}

// extractShifts returns named shifts (deduplicated, first-mention order) or
// a group-by flag. A grouping request ("production by shift") produces the
// flag INSTEAD of a shift list.
func extractShifts(lower string) (shifts []string, groupBy bool) {
	if byShiftRe.MatchString(lower) {
		return nil, true
	}

	seen := make(map[string]bool, 3)
	for _, m := range shiftRe.FindAllStringSubmatch(lower, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		letter := shiftLetter[raw]
		if letter != "" && !seen[letter] {
			seen[letter] = true
			shifts = append(shifts, letter)
		}
	}
	return shifts, false
}

// =============================================================================
// Equipment Identifier Extraction
// =============================================================================

var equipmentIDRe = regexp.MustCompile(`\b([A-Za-z]{2,4})-(\d{1,5})\b`)

// genericEquipmentWords are fleet nouns that must never be admitted as
// equipment identifiers, whatever shape they arrive in.
var genericEquipmentWords = map[string]bool{
	"tipper": true, "tippers": true,
	"excavator": true, "excavators": true,
	"dumper": true, "dumpers": true,
	"dozer": true, "dozers": true,
	"truck": true, "trucks": true,
	"loader": true, "loaders": true,
	"drill": true, "drills": true,
	"grader": true, "graders": true,
	"shift": true, "shifts": true,
}

// ExtractEquipmentIDs returns hyphenated equipment identifiers, deduplicated
// and uppercase-normalized ("ex-189" → "EX-189").
func ExtractEquipmentIDs(text string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range equipmentIDRe.FindAllStringSubmatch(text, -1) {
		prefix := strings.ToLower(m[1])
		if genericEquipmentWords[prefix] {
			continue
		}
		id := strings.ToUpper(m[1]) + "-" + m[2]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// =============================================================================
// Numeric Filter Extraction
// =============================================================================

const numberPat = `(\d+(?:,\d{3})*(?:\.\d+)?)`

var (
	betweenRe  = regexp.MustCompile(`\bbetween\s+` + numberPat + `\s+and\s+` + numberPat + `\b`)
	gteRe      = regexp.MustCompile(`\b(?:at\s+least|no\s+less\s+than|minimum\s+of)\s+` + numberPat)
	lteRe      = regexp.MustCompile(`\b(?:at\s+most|no\s+more\s+than|up\s+to|maximum\s+of)\s+` + numberPat)
	gtRe       = regexp.MustCompile(`\b(?:more\s+than|greater\s+than|over|above|exceeding)\s+` + numberPat)
	ltRe       = regexp.MustCompile(`\b(?:less\s+than|under|below|fewer\s+than)\s+` + numberPat)
	eqRe       = regexp.MustCompile(`\b(?:exactly|equal\s+to|equals)\s+` + numberPat)
	symbolicRe = regexp.MustCompile(`(>=|<=|>|<|=)\s*` + numberPat)
)

// extractNumericFilter recognizes six comparator phrasings. Inclusive
// "between" carries both bounds. Order matters: "at least"/"at most" phrases
// embed words the looser patterns would also hit.
func extractNumericFilter(lower string) *NumericFilter {
	if m := betweenRe.FindStringSubmatch(lower); m != nil {
		lo, ok1 := parseNumber(m[1])
		hi, ok2 := parseNumber(m[2])
		if ok1 && ok2 && lo <= hi {
			return &NumericFilter{Operator: "between", Value: lo, UpperValue: hi}
		}
		return nil
	}
	for _, c := range []struct {
		re *regexp.Regexp
		op string
	}{
		{gteRe, ">="},
		{lteRe, "<="},
		{gtRe, ">"},
		{ltRe, "<"},
		{eqRe, "="},
	} {
		if m := c.re.FindStringSubmatch(lower); m != nil {
			if v, ok := parseNumber(m[1]); ok {
				return &NumericFilter{Operator: c.op, Value: v}
			}
		}
	}
	// Symbolic operators ("trips > 100") sit outside word boundaries.
	if m := symbolicRe.FindStringSubmatch(lower); m != nil {
		if v, ok := parseNumber(m[2]); ok {
			return &NumericFilter{Operator: m[1], Value: v}
		}
	}
	return nil
}

// parseNumber parses a number that may carry thousands separators.
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// =============================================================================
// Goal Extraction
// =============================================================================

var (
	targetOfRe  = regexp.MustCompile(`\btargets?\s+(?:of\s+|is\s+)?` + numberPat)
	targetPreRe = regexp.MustCompile(numberPat + `\s+(?:ton(?:ne)?s?\s+)?target\b`)
	durationRe  = regexp.MustCompile(`\b(?:in|within)\s+(\d+)\s+(day|week|month)s?\b`)
)

// extractGoalExtras captures optimization goal figures: a production target
// ("target of 50000 tons") and a horizon normalized to days ("in 30 days").
// They ride in Extras so a follow-up turn can update one without restating
// the other.
func extractGoalExtras(lower string) map[string]any {
	extras := map[string]any{}

	m := targetOfRe.FindStringSubmatch(lower)
	if m == nil {
		m = targetPreRe.FindStringSubmatch(lower)
	}
	if m != nil {
		if v, ok := parseNumber(m[1]); ok {
			extras["target"] = v
		}
	}

	if m := durationRe.FindStringSubmatch(lower); m != nil {
		if n, _ := strconv.Atoi(m[1]); n > 0 {
			switch m[2] {
			case "week":
				n *= 7
			case "month":
				n *= 30
			}
			extras["duration"] = n
		}
	}

	if len(extras) == 0 {
		return nil
	}
	return extras
}

// =============================================================================
// Rank, Machine Types, Ordinal Rows
// =============================================================================

var (
	topRe    = regexp.MustCompile(`\b(?:top|best|highest|leading)\s+(\d+)\b`)
	bottomRe = regexp.MustCompile(`\b(?:bottom|worst|lowest|weakest)\s+(\d+)\b`)
	topBare  = regexp.MustCompile(`\b(?:top|best|highest)\s+(?:performing\s+)?(?:tippers?|excavators?|dumpers?|dozers?|trucks?|loaders?|equipment|machines?)\b`)
	bottBare = regexp.MustCompile(`\b(?:bottom|worst|lowest)\s+(?:performing\s+)?(?:tippers?|excavators?|dumpers?|dozers?|trucks?|loaders?|equipment|machines?)\b`)
)

// defaultRankN applies when a ranking request names no count ("top tippers").
const defaultRankN = 5

func extractRank(lower string) *RankRequest {
	if m := topRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &RankRequest{N: n, Type: "top"}
	}
	if m := bottomRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &RankRequest{N: n, Type: "bottom"}
	}
	if topBare.MatchString(lower) {
		return &RankRequest{N: defaultRankN, Type: "top"}
	}
	if bottBare.MatchString(lower) {
		return &RankRequest{N: defaultRankN, Type: "bottom"}
	}
	return nil
}

// machineTypeSingular maps every recognized surface form to its canonical
// singular type name.
var machineTypeSingular = map[string]string{
	"tipper": "tipper", "tippers": "tipper",
	"excavator": "excavator", "excavators": "excavator",
	"dumper": "dumper", "dumpers": "dumper",
	"dozer": "dozer", "dozers": "dozer",
	"truck": "truck", "trucks": "truck",
	"loader": "loader", "loaders": "loader",
	"drill": "drill", "drills": "drill",
	"grader": "grader", "graders": "grader",
}

func extractMachineTypes(lower string) []string {
	var types []string
	seen := make(map[string]bool)
	for _, word := range tokenizeWords(lower) {
		if canon, ok := machineTypeSingular[word]; ok && !seen[canon] {
			seen[canon] = true
			types = append(types, canon)
		}
	}
	return types
}

var rowOrdinalRe = regexp.MustCompile(`\b(\d+)(?:st|nd|rd|th)?\s+row\b|\brow\s+(?:number\s+)?(\d+)\b`)

func extractRowNumber(lower string) int {
	m := rowOrdinalRe.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	n, _ := strconv.Atoi(raw)
	return n
}

// =============================================================================
// Comparison Extraction
// =============================================================================

var (
	compareVsRe  = regexp.MustCompile(`(?i)\b([\w-]+)\s+(?:vs\.?|versus)\s+([\w-]+)\b`)
	compareAndRe = regexp.MustCompile(`(?i)\bcompare\s+(?:the\s+)?([\w-]+(?:\s+[\w-]+)?)\s+(?:and|with|against|to)\s+([\w-]+(?:\s+[\w-]+)?)\b`)
)

// extractComparison finds two compared entities and infers the comparison
// domain from their shapes: equipment IDs → equipment, shift letters → shift,
// month names → month, anything else with a date present → date.
func (e *Extractor) extractComparison(text, lower string) *Comparison {
	var a, b string
	if m := compareVsRe.FindStringSubmatch(text); m != nil {
		a, b = m[1], m[2]
	} else if m := compareAndRe.FindStringSubmatch(text); m != nil {
		a, b = m[1], m[2]
	} else {
		return nil
	}
	a, b = trimComparisonEntity(a), trimComparisonEntity(b)

	domain := inferComparisonDomain(a, b, lower)
	return &Comparison{
		EntityA: normalizeComparisonEntity(a),
		EntityB: normalizeComparisonEntity(b),
		Domain:  domain,
	}
}

func inferComparisonDomain(a, b, lower string) string {
	aL, bL := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))

	if equipmentIDRe.MatchString(aL) && equipmentIDRe.MatchString(bL) {
		return "equipment"
	}
	if _, okA := monthsByName[aL]; okA {
		if _, okB := monthsByName[bL]; okB {
			return "month"
		}
	}
	if isShiftEntity(aL) && isShiftEntity(bL) {
		return "shift"
	}
	if strings.Contains(lower, "shift") {
		return "shift"
	}
	if strings.Contains(lower, "month") {
		return "month"
	}
	return "date"
}

// trimComparisonEntity drops a trailing word the capture swallowed from the
// surrounding sentence ("february production" → "february"). A two-word
// entity survives intact only when the pair itself is a recognized shape
// ("shift a").
func trimComparisonEntity(s string) string {
	s = strings.TrimSpace(s)
	words := strings.Fields(s)
	if len(words) != 2 {
		return s
	}
	if isShiftEntity(strings.ToLower(s)) {
		return s
	}
	first := strings.ToLower(words[0])
	if _, ok := monthsByName[first]; ok {
		return words[0]
	}
	if equipmentIDRe.MatchString(words[0]) {
		return words[0]
	}
	return s
}

func isShiftEntity(s string) bool {
	s = strings.TrimPrefix(s, "shift ")
	_, ok := shiftLetter[s]
	return ok
}

func normalizeComparisonEntity(s string) string {
	s = strings.TrimSpace(s)
	if id := ExtractEquipmentIDs(s); len(id) == 1 {
		return id[0]
	}
	return s
}
