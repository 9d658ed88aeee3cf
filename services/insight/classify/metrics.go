// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "classify",
		Name:      "results_total",
		Help:      "Classification results by detection method and intent",
	}, []string{"method", "intent"})

	llmFailureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "classify",
		Name:      "llm_failures_total",
		Help:      "Semantic stage failures by call type: interpret, validate",
	}, []string{"call"})
)
