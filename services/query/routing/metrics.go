// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classifierIntentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetquery",
		Subsystem: "routing",
		Name:      "classifier_intent_total",
		Help:      "Resolved intents by name, including UNKNOWN.",
	}, []string{"intent"})

	classifierAmbiguousTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetquery",
		Subsystem: "routing",
		Name:      "classifier_ambiguous_total",
		Help:      "Classifications where the runner-up scored close enough to trigger the ambiguity penalty.",
	})

	routerDecisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetquery",
		Subsystem: "routing",
		Name:      "router_decision_total",
		Help:      "Routing decisions by task and source (deterministic or llm).",
	}, []string{"task", "source"})

	fallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetquery",
		Subsystem: "routing",
		Name:      "fallback_total",
		Help:      "Queries that reached the fallback router, by chosen task.",
	}, []string{"task"})

	followupDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetquery",
		Subsystem: "routing",
		Name:      "followup_detected_total",
		Help:      "Queries resolved as follow-ups to a stored conversation turn.",
	})

	contextStoreEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleetquery",
		Subsystem: "routing",
		Name:      "context_store_entries",
		Help:      "Live conversation contexts after the last sweep.",
	})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fleetquery",
		Subsystem: "routing",
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end latency of classify-and-route.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
)
