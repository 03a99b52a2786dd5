// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"strings"
	"unicode"
)

// =============================================================================
// Pattern Matcher — exact and typo-tolerant keyword detection
// =============================================================================

// fuzzyMinKeywordLen is the minimum keyword length eligible for fuzzy
// matching. Short keywords never fuzzy-match: the similarity ratio of a
// 3-letter word against almost anything is too forgiving.
const fuzzyMinKeywordLen = 6

// Matcher detects keywords in query text, exactly or via an edit-distance
// similarity ratio for longer keywords.
//
// # Description
//
// Exact matching is word-boundary aware: "mean" does not match inside
// "meaning". Fuzzy matching compares the keyword against every word window
// of matching length and accepts when the similarity ratio clears a
// length-scaled threshold, which gives typo tolerance ("forcast" matches
// "forecast") without materially increasing the false-positive rate.
//
// # Thread Safety
//
// Matcher is stateless and safe for concurrent use.
type Matcher struct{}

// NewMatcher creates a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Matches reports whether keyword occurs in text, exactly or fuzzily.
func (m *Matcher) Matches(text, keyword string) bool {
	matched, _ := m.Match(text, keyword)
	return matched
}

// Match reports whether keyword occurs in text and whether the hit was fuzzy.
//
// # Inputs
//
//   - text: Raw query text. Case-insensitive.
//   - keyword: Keyword or phrase from an intent definition.
//
// # Outputs
//
//   - matched: True on exact or fuzzy hit.
//   - fuzzy: True only when the hit came from the similarity fallback.
func (m *Matcher) Match(text, keyword string) (matched bool, fuzzy bool) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false, false
	}
	text = strings.ToLower(text)

	if containsPhrase(text, keyword) {
		return true, false
	}

	if !fuzzyEligible(keyword) {
		return false, false
	}

	kwWords := strings.Fields(keyword)
	textWords := tokenizeWords(text)
	if len(textWords) < len(kwWords) {
		return false, false
	}

	threshold := fuzzyThreshold(keyword)
	for i := 0; i+len(kwWords) <= len(textWords); i++ {
		window := strings.Join(textWords[i:i+len(kwWords)], " ")
		if similarityRatio(window, keyword) >= threshold {
			return true, true
		}
	}
	return false, false
}

// fuzzyEligible reports whether a keyword may attempt fuzzy matching:
// multi-word phrases or keywords longer than five characters.
func fuzzyEligible(keyword string) bool {
	if strings.ContainsRune(keyword, ' ') {
		return true
	}
	return len(keyword) >= fuzzyMinKeywordLen
}

// fuzzyThreshold scales the required similarity with keyword length.
// Longer keywords tolerate proportionally more edits without admitting
// unrelated words.
func fuzzyThreshold(keyword string) float64 {
	n := len(keyword)
	switch {
	case n <= 8:
		return 0.84
	case n <= 14:
		return 0.82
	default:
		return 0.80
	}
}

// containsPhrase reports an exact, word-boundary occurrence of phrase in text.
// Boundaries are non-letter, non-digit, non-underscore runes, so "production"
// does not match inside "production_summary".
func containsPhrase(text, phrase string) bool {
	start := 0
	for {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		abs := start + idx
		end := abs + len(phrase)

		leftOK := abs == 0 || isBoundary(rune(text[abs-1]))
		rightOK := end == len(text) || isBoundary(rune(text[end]))
		if leftOK && rightOK {
			return true
		}

		start = abs + 1
		if start >= len(text) {
			return false
		}
	}
}

// isBoundary reports whether r separates words. Underscore is a word rune so
// identifiers like table names stay atomic.
func isBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

// tokenizeWords splits text into lowercase word tokens, stripping punctuation
// but keeping underscores inside identifiers.
func tokenizeWords(text string) []string {
	return strings.FieldsFunc(text, isBoundary)
}

// similarityRatio is a normalized edit-distance similarity in [0,1]:
// 1 - levenshtein(a,b)/max(len(a),len(b)).
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	max := la
	if lb > max {
		max = lb
	}
	return 1 - float64(dist)/float64(max)
}

// levenshtein computes the edit distance between two strings using a
// two-row dynamic programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
