// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"testing"

	"github.com/openpitiq/fleetquery/services/query/config"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	thresholds, err := config.GetThresholds(context.Background())
	if err != nil {
		t.Fatalf("load thresholds: %v", err)
	}
	return NewRouter(thresholds, nil)
}

func intentOf(name string, confidence float64) *IntentResult {
	return &IntentResult{Intent: name, Confidence: confidence}
}

func TestRoute_StatisticalAlwaysSQL(t *testing.T) {
	r := newTestRouter(t)

	// Statistical phrasing wins even when the resolved intent points
	// elsewhere.
	d := r.Route(context.Background(), "average trips per tipper by shift",
		intentOf("SHIFT_ANALYSIS", 0.8), ParameterSet{})
	if d == nil {
		t.Fatal("expected a decision")
	}
	if d.Task != TaskSQL || d.Template != TemplateStatistical {
		t.Errorf("got task=%s template=%s, want sql/%s", d.Task, d.Template, TemplateStatistical)
	}
	if len(d.StatOps) != 1 || d.StatOps[0] != "mean" {
		t.Errorf("stat_ops = %v, want [mean]", d.StatOps)
	}
	if d.Confidence != 0.99 {
		t.Errorf("confidence = %v, want 0.99", d.Confidence)
	}
}

func TestRoute_StatOpsNormalizedAndDeduplicated(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route(context.Background(), "average and mean and std dev of tonnage",
		intentOf("STATISTICAL_ANALYSIS", 0.9), ParameterSet{})
	if d == nil {
		t.Fatal("expected a decision")
	}
	want := []string{"mean", "standard deviation"}
	if len(d.StatOps) != len(want) {
		t.Fatalf("stat_ops = %v, want %v", d.StatOps, want)
	}
	for i := range want {
		if d.StatOps[i] != want[i] {
			t.Errorf("stat_ops[%d] = %s, want %s", i, d.StatOps[i], want[i])
		}
	}
}

func TestRoute_TrustedIntents(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		intent   string
		task     string
		template string
	}{
		{"TARGET_OPTIMIZATION", TaskOptimize, TemplateTargetOptimum},
		{"EQUIPMENT_OPTIMIZATION", TaskOptimize, TemplateEquipOptimum},
		{"EQUIPMENT_COMBINATION", TaskSQL, TemplateCombination},
		{"SHIFT_COMPARISON", TaskSQL, TemplateShiftCompare},
		{"MONTH_COMPARISON", TaskSQL, TemplateMonthCompare},
	}
	for _, tt := range tests {
		d := r.Route(context.Background(), "fleet question", intentOf(tt.intent, 0.9), ParameterSet{})
		if d == nil {
			t.Fatalf("%s: expected a decision", tt.intent)
		}
		if d.Task != tt.task || d.Template != tt.template {
			t.Errorf("%s: got task=%s template=%s, want %s/%s",
				tt.intent, d.Task, d.Template, tt.task, tt.template)
		}
		if d.RouteSource != RouteSourceDeterministic {
			t.Errorf("%s: route_source = %s, want deterministic", tt.intent, d.RouteSource)
		}
	}
}

func TestRoute_Advisory(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route(context.Background(), "how do I reduce tipper idle cycles",
		intentOf("ADVISORY_PROCEDURE", 0.8), ParameterSet{})
	if d == nil {
		t.Fatal("expected a decision")
	}
	if d.Task != TaskRAG {
		t.Errorf("task = %s, want rag", d.Task)
	}
	if len(d.Namespaces) == 0 {
		t.Error("rag decision must carry document namespaces")
	}
}

func TestRoute_Optimization(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route(context.Background(), "forecast production for next month",
		intentOf("FORECASTING", 0.9), ParameterSet{})
	if d == nil {
		t.Fatal("expected a decision")
	}
	if d.Task != TaskOptimize {
		t.Errorf("task = %s, want optimize", d.Task)
	}
}

func TestRoute_VisualizationNeedsSQL(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route(context.Background(), "plot daily tonnage as a bar chart",
		intentOf("VISUALIZATION", 0.8), ParameterSet{})
	if d == nil {
		t.Fatal("expected a decision")
	}
	if d.Task != TaskSQL || d.Template != TemplateVisualization {
		t.Errorf("got task=%s template=%s, want sql/%s", d.Task, d.Template, TemplateVisualization)
	}
}

func TestRoute_StructuralSignals(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	d := r.Route(ctx, "select 19th row from production_summary",
		intentOf("ORDINAL_ROW_QUERY", 0.9), ParameterSet{RowNumber: 19})
	if d == nil || d.Template != TemplateOrdinalRow {
		t.Fatalf("row ordinal: got %+v, want %s", d, TemplateOrdinalRow)
	}
	if d.Params.RowNumber != 19 {
		t.Errorf("row_number = %d, want 19", d.Params.RowNumber)
	}

	d = r.Route(ctx, "EX-189 activity in march",
		intentOf("EQUIPMENT_PERFORMANCE", 0.6), ParameterSet{EquipmentIDs: []string{"EX-189"}})
	if d == nil || d.Template != TemplateEquipmentScan {
		t.Fatalf("equipment ids: got %+v, want %s", d, TemplateEquipmentScan)
	}

	d = r.Route(ctx, "march 2024 records",
		intentOf(IntentUnknown, 0), ParameterSet{Date: &ParsedDate{Kind: DateMonth}})
	if d == nil || d.Template != TemplateTimeScoped {
		t.Fatalf("time scope: got %+v, want %s", d, TemplateTimeScoped)
	}
}

func TestRoute_NoRuleReturnsNil(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route(context.Background(), "hello there", intentOf(IntentUnknown, 0), ParameterSet{})
	if d != nil {
		t.Errorf("got %+v, want nil when no rule fires", d)
	}
}

func TestRoute_DecisionParamsAreCopied(t *testing.T) {
	r := newTestRouter(t)

	params := ParameterSet{EquipmentIDs: []string{"EX-189"}}
	d := r.Route(context.Background(), "EX-189 activity",
		intentOf("EQUIPMENT_PERFORMANCE", 0.6), params)
	if d == nil {
		t.Fatal("expected a decision")
	}
	d.Params.EquipmentIDs[0] = "XX-0"
	if params.EquipmentIDs[0] != "EX-189" {
		t.Error("decision params alias the caller's parameter set")
	}
}
