// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Thresholds
// =============================================================================

//go:embed thresholds.yaml
var defaultThresholdsYAML []byte

// =============================================================================
// Threshold Configuration Types
// =============================================================================

// Thresholds is the fixed confidence policy table.
//
// Description:
//
//	Router rules emit confidences drawn from this table rather than computed
//	values: routing confidence is a policy choice, not a measurement. The
//	classifier's tier maxima and ambiguity settings also live here so policy
//	changes never require recompiling the core.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Thresholds struct {
	// TierMaxScore normalizes raw classifier scores to [0,1] per tier.
	// Keyed by tier (1-3).
	TierMaxScore map[int]float64 `yaml:"tier_max_score"`

	// Decision is the fixed confidence table for router rules, keyed by
	// policy level: certain, high, strong, moderate, weak.
	Decision map[string]float64 `yaml:"decision"`

	// AmbiguityRatio is the runner-up/winner score ratio above which the
	// ambiguity penalty applies.
	AmbiguityRatio float64 `yaml:"ambiguity_ratio"`

	// AmbiguityCap caps the penalized confidence.
	AmbiguityCap float64 `yaml:"ambiguity_cap"`
}

// Decision policy level names.
const (
	DecisionCertain  = "certain"
	DecisionHigh     = "high"
	DecisionStrong   = "strong"
	DecisionModerate = "moderate"
	DecisionWeak     = "weak"
)

// DecisionConfidence returns the fixed confidence for a policy level.
// Unknown levels return the weak confidence, never zero.
func (t *Thresholds) DecisionConfidence(level string) float64 {
	if v, ok := t.Decision[level]; ok {
		return v
	}
	return t.Decision[DecisionWeak]
}

// TierMax returns the score ceiling for a tier, defaulting to the tier-3
// ceiling for out-of-range input. Validation guarantees all three tiers are
// present, so the default only guards programmer error.
func (t *Thresholds) TierMax(tier int) float64 {
	if v, ok := t.TierMaxScore[tier]; ok {
		return v
	}
	return t.TierMaxScore[3]
}

// =============================================================================
// Singleton Thresholds
// =============================================================================

var (
	thresholdsMu      sync.RWMutex
	cachedThresholds  *Thresholds
	thresholdsLoadErr error
)

// GetThresholds returns the cached threshold table, loading the embedded
// defaults on first call.
//
// Thread Safety: Safe for concurrent use.
func GetThresholds(ctx context.Context) (*Thresholds, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetThresholds: ctx must not be nil")
	}

	thresholdsMu.RLock()
	if cachedThresholds != nil || thresholdsLoadErr != nil {
		cfg, err := cachedThresholds, thresholdsLoadErr
		thresholdsMu.RUnlock()
		return cfg, err
	}
	thresholdsMu.RUnlock()

	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()

	if cachedThresholds == nil && thresholdsLoadErr == nil {
		cachedThresholds, thresholdsLoadErr = LoadThresholds(defaultThresholdsYAML)
	}
	return cachedThresholds, thresholdsLoadErr
}

// ResetThresholds clears the cached table so tests can reload.
func ResetThresholds() {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	cachedThresholds = nil
	thresholdsLoadErr = nil
}

// LoadThresholds parses and validates a Thresholds table from YAML bytes.
func LoadThresholds(data []byte) (*Thresholds, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadThresholds: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadThresholds: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var t Thresholds
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("LoadThresholds: parsing YAML: %w", err)
	}

	for tier := 1; tier <= 3; tier++ {
		v, ok := t.TierMaxScore[tier]
		if !ok {
			return nil, fmt.Errorf("LoadThresholds: tier_max_score missing tier %d", tier)
		}
		if v <= 0 {
			return nil, fmt.Errorf("LoadThresholds: tier_max_score[%d] must be positive, got %v", tier, v)
		}
	}
	for _, level := range []string{DecisionCertain, DecisionHigh, DecisionStrong, DecisionModerate, DecisionWeak} {
		v, ok := t.Decision[level]
		if !ok {
			return nil, fmt.Errorf("LoadThresholds: decision table missing level %q", level)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("LoadThresholds: decision[%s] must be in [0,1], got %v", level, v)
		}
	}
	if t.AmbiguityRatio <= 0 || t.AmbiguityRatio >= 1 {
		return nil, fmt.Errorf("LoadThresholds: ambiguity_ratio must be in (0,1), got %v", t.AmbiguityRatio)
	}
	if t.AmbiguityCap <= 0 || t.AmbiguityCap > 1 {
		return nil, fmt.Errorf("LoadThresholds: ambiguity_cap must be in (0,1], got %v", t.AmbiguityCap)
	}

	return &t, nil
}
