// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writtenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetquery",
		Subsystem: "feedback",
		Name:      "records_written_total",
		Help:      "Feedback records journaled to storage.",
	})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetquery",
		Subsystem: "feedback",
		Name:      "records_dropped_total",
		Help:      "Feedback records dropped because the write rate limit was exhausted.",
	})
)
