// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"strings"
	"testing"
)

func TestFallback_TooShort(t *testing.T) {
	f := NewFallbackRouter(nil)
	ctx := context.Background()

	for _, q := range []string{"", "x", "   ", "hmm"} {
		d := f.Route(ctx, q)
		if d == nil {
			t.Fatalf("%q: fallback must always decide", q)
		}
		if d.Task != TaskRAG {
			t.Errorf("%q: task = %s, want rag", q, d.Task)
		}
		if !strings.Contains(d.Reason, "fuller question") {
			t.Errorf("%q: reason = %q, want an explicit ask for more", q, d.Reason)
		}
	}
}

func TestFallback_MeaningfulSingleWord(t *testing.T) {
	f := NewFallbackRouter(nil)

	d := f.Route(context.Background(), "production")
	if d.Task != TaskSQL {
		t.Errorf("task = %s, want sql for a domain noun", d.Task)
	}
	if d.Confidence != fallbackStrongSQLConfidence {
		t.Errorf("confidence = %v, want %v", d.Confidence, fallbackStrongSQLConfidence)
	}
}

func TestFallback_Advisory(t *testing.T) {
	f := NewFallbackRouter(nil)

	d := f.Route(context.Background(), "how do we maintain the crushers")
	if d.Task != TaskRAG {
		t.Errorf("task = %s, want rag", d.Task)
	}
	if len(d.Namespaces) == 0 {
		t.Error("advisory rag decision must carry namespaces")
	}
}

func TestFallback_Optimization(t *testing.T) {
	f := NewFallbackRouter(nil)

	d := f.Route(context.Background(), "allocate machines across both pits tomorrow")
	if d.Task != TaskOptimize {
		t.Errorf("task = %s, want optimize", d.Task)
	}
}

func TestFallback_StrongSQLIndicators(t *testing.T) {
	f := NewFallbackRouter(nil)

	queries := []string{
		"display all entries",
		"tonnage per excavator yesterday",
		"highest daily output",
	}
	for _, q := range queries {
		d := f.Route(context.Background(), q)
		if d.Task != TaskSQL {
			t.Errorf("%q: task = %s, want sql", q, d.Task)
		}
		if d.Confidence != fallbackStrongSQLConfidence {
			t.Errorf("%q: confidence = %v, want %v", q, d.Confidence, fallbackStrongSQLConfidence)
		}
	}
}

func TestFallback_DefaultDefersToLLM(t *testing.T) {
	f := NewFallbackRouter(nil)

	d := f.Route(context.Background(), "tell me something interesting")
	if d.Task != TaskRAG {
		t.Errorf("task = %s, want rag", d.Task)
	}
	if d.Confidence != fallbackDefaultConfidence {
		t.Errorf("confidence = %v, want %v (deliberately low)", d.Confidence, fallbackDefaultConfidence)
	}
	if d.RouteSource != RouteSourceLLM {
		t.Errorf("route_source = %s, want llm", d.RouteSource)
	}
}
