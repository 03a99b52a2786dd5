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
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Intent Definitions
// =============================================================================

//go:embed intents.yaml
var defaultIntentsYAML []byte

// MaxYAMLFileSize caps config files at 1 MiB. Anything larger is a
// misconfiguration, not a real rule set.
const MaxYAMLFileSize = 1 << 20

var intentConfigTracer = otel.Tracer("fleetquery.query.config")

// =============================================================================
// Intent Configuration Types
// =============================================================================

// IntentDef is one configured intent: a name, a specificity tier, and the
// keyword vocabulary that votes for it.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type IntentDef struct {
	// Name is the intent label, e.g. "TARGET_OPTIMIZATION".
	Name string `yaml:"name" validate:"required"`

	// Tier is the specificity rank: 1 specific, 2 moderate, 3 generic.
	// Tier-1/2 candidates always dominate tier-3 ones during selection.
	Tier int `yaml:"tier" validate:"min=1,max=3"`

	// Keywords vote for this intent when they match the query.
	Keywords []string `yaml:"keywords" validate:"required,min=1"`
}

// IntentConfig is the full static classification configuration.
//
// Description:
//
//	Holds every intent definition plus the short list of high-discriminating
//	phrases that earn a fixed scoring bonus wherever they appear.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type IntentConfig struct {
	// Intents are the known intent definitions.
	Intents []IntentDef `yaml:"intents" validate:"required,min=1,dive"`

	// HighSignalPhrases earn a +4 bonus when matched, regardless of which
	// intent's keyword list they belong to.
	HighSignalPhrases []string `yaml:"high_signal_phrases"`

	// StatisticalKeywords trigger the statistical exclusion rule: competing
	// generic aggregation candidates are removed and the statistical
	// candidate's score is amplified.
	StatisticalKeywords []string `yaml:"statistical_keywords"`
}

// ByName returns the intent definition for the given name, or nil.
func (c *IntentConfig) ByName(name string) *IntentDef {
	for i := range c.Intents {
		if c.Intents[i].Name == name {
			return &c.Intents[i]
		}
	}
	return nil
}

// =============================================================================
// Singleton Intent Config
// =============================================================================

var (
	intentConfigMu      sync.RWMutex
	cachedIntentConfig  *IntentConfig
	intentConfigLoadErr error
)

// GetIntentConfig returns the cached intent configuration, loading the
// embedded defaults on first call.
//
// Thread Safety: Safe for concurrent use.
func GetIntentConfig(ctx context.Context) (*IntentConfig, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetIntentConfig: ctx must not be nil")
	}

	intentConfigMu.RLock()
	if cachedIntentConfig != nil || intentConfigLoadErr != nil {
		cfg, err := cachedIntentConfig, intentConfigLoadErr
		intentConfigMu.RUnlock()
		return cfg, err
	}
	intentConfigMu.RUnlock()

	intentConfigMu.Lock()
	defer intentConfigMu.Unlock()

	if cachedIntentConfig == nil && intentConfigLoadErr == nil {
		cachedIntentConfig, intentConfigLoadErr = LoadIntentConfig(ctx, defaultIntentsYAML)
	}
	return cachedIntentConfig, intentConfigLoadErr
}

// ResetIntentConfig clears the cached config so tests can reload.
func ResetIntentConfig() {
	intentConfigMu.Lock()
	defer intentConfigMu.Unlock()
	cachedIntentConfig = nil
	intentConfigLoadErr = nil
}

// LoadIntentConfig parses and validates an IntentConfig from YAML bytes.
//
// Description:
//
//	An intent with zero keywords or a tier outside {1,2,3} is a programming
//	defect in the rule set, not a runtime case: it fails fast here so a bad
//	configuration can never reach per-query code.
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes to parse.
//
// Outputs:
//
//	*IntentConfig - The validated configuration.
//	error - Non-nil if parsing or validation fails.
func LoadIntentConfig(ctx context.Context, data []byte) (*IntentConfig, error) {
	_, span := intentConfigTracer.Start(ctx, "config.LoadIntentConfig")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadIntentConfig: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadIntentConfig: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var cfg IntentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadIntentConfig: parsing YAML: %w", err)
	}

	if err := validateIntentConfig(&cfg); err != nil {
		return nil, fmt.Errorf("LoadIntentConfig: validation: %w", err)
	}

	span.SetAttributes(
		attribute.Int("intents", len(cfg.Intents)),
		attribute.Int("high_signal_phrases", len(cfg.HighSignalPhrases)),
		attribute.Int("statistical_keywords", len(cfg.StatisticalKeywords)),
	)

	slog.Info("intent config loaded",
		slog.Int("intents", len(cfg.Intents)),
		slog.Int("high_signal_phrases", len(cfg.HighSignalPhrases)),
	)

	return &cfg, nil
}

var intentValidate = validator.New()

// validateIntentConfig checks the loaded rule set for consistency.
func validateIntentConfig(cfg *IntentConfig) error {
	if err := intentValidate.Struct(cfg); err != nil {
		return fmt.Errorf("struct validation: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Intents))
	for i, def := range cfg.Intents {
		if def.Name == "" {
			return fmt.Errorf("intent[%d]: name must not be empty", i)
		}
		if seen[def.Name] {
			return fmt.Errorf("intent[%d] (%s): duplicate intent name", i, def.Name)
		}
		seen[def.Name] = true
		if def.Tier < 1 || def.Tier > 3 {
			return fmt.Errorf("intent[%d] (%s): tier must be 1, 2, or 3, got %d", i, def.Name, def.Tier)
		}
		if len(def.Keywords) == 0 {
			return fmt.Errorf("intent[%d] (%s): keywords must not be empty", i, def.Name)
		}
		for j, kw := range def.Keywords {
			if kw == "" {
				return fmt.Errorf("intent[%d] (%s): keyword[%d] must not be empty", i, def.Name, j)
			}
		}
	}
	return nil
}
