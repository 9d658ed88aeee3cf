// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package followup detects when a new message refines the assistant's
// previous answer ("make it shorter", "try again but focus on pricing")
// rather than opening a new question. The inferred intent is carried as
// a string key; the pipeline maps keys to intents via its rule table.
package followup

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pitcrewai/meetinsight/services/insight/config"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var detectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Subsystem: "followup",
	Name:      "detect_total",
	Help:      "Follow-up detections by outcome: matched, no_match, thread_too_short",
}, []string{"outcome"})

// snippetMaxLen bounds the prior-answer excerpt included in results.
const snippetMaxLen = 200

// =============================================================================
// Types
// =============================================================================

// Message is one entry of a conversation thread, oldest first.
type Message struct {
	Text  string
	IsBot bool
}

// Result describes a detected follow-up refinement.
type Result struct {
	// InferredIntentKey is the intent key the refinement should re-run
	// under, resolved from the last bot message's topic markers.
	InferredIntentKey string

	// Reason names the refinement rule that fired.
	Reason string

	// PreviousBotSnippet is a bounded excerpt of the answer being refined.
	// Empty if the thread holds no bot message.
	PreviousBotSnippet string

	// Confidence is the configured uniform follow-up confidence.
	Confidence float64
}

type compiledPattern struct {
	raw         string
	description string
	regex       *regexp.Regexp
}

// Detector matches refinement phrasing against a conversation thread.
//
// Thread Safety: Safe for concurrent use after construction.
type Detector struct {
	patterns      []compiledPattern
	topicMarkers  []config.TopicMarker
	defaultIntent string
	confidence    float64
	logger        *slog.Logger
}

// NewDetector compiles the follow-up rules into a Detector.
//
// Inputs:
//
//	rs - The validated rule set.
//	logger - Logger instance. May be nil.
//
// Outputs:
//
//	*Detector - The constructed detector. Never nil.
func NewDetector(rs *config.RuleSet, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	patterns := make([]compiledPattern, 0, len(rs.FollowUp.Patterns))
	for _, pr := range rs.FollowUp.Patterns {
		re, err := regexp.Compile("(?i)" + pr.Pattern)
		if err != nil {
			logger.Warn("skipping invalid follow-up pattern",
				slog.String("pattern", pr.Pattern),
				slog.String("error", err.Error()),
			)
			continue
		}
		patterns = append(patterns, compiledPattern{
			raw:         pr.Pattern,
			description: pr.Description,
			regex:       re,
		})
	}
	return &Detector{
		patterns:      patterns,
		topicMarkers:  rs.FollowUp.TopicMarkers,
		defaultIntent: rs.FollowUp.DefaultIntent,
		confidence:    rs.FollowUp.Confidence,
		logger:        logger,
	}
}

// =============================================================================
// Detection
// =============================================================================

// Detect checks whether message refines an earlier answer in thread.
//
// Description:
//
//	Requires at least two prior thread messages; shorter threads cannot
//	be refinements and return nil immediately. Patterns are tried in
//	rule order; the first match wins. The inferred intent comes from
//	topic markers run against the most recent bot message, falling back
//	to the configured default when none match.
//
// Inputs:
//
//	message - The new user message.
//	thread - Prior conversation, oldest first. The new message is not
//	         part of the thread.
//
// Outputs:
//
//	*Result - The detection, or nil when message is not a follow-up.
//
// Thread Safety: Safe for concurrent use.
func (d *Detector) Detect(message string, thread []Message) *Result {
	if len(thread) < 2 {
		detectTotal.WithLabelValues("thread_too_short").Inc()
		return nil
	}

	var matched *compiledPattern
	for i := range d.patterns {
		if d.patterns[i].regex.MatchString(message) {
			matched = &d.patterns[i]
			break
		}
	}
	if matched == nil {
		detectTotal.WithLabelValues("no_match").Inc()
		return nil
	}

	botText, botFound := lastBotMessage(thread)
	intentKey := d.defaultIntent
	if botFound {
		if marked, ok := d.matchTopicMarker(botText); ok {
			intentKey = marked
		}
	}

	detectTotal.WithLabelValues("matched").Inc()
	d.logger.Debug("follow-up detected",
		slog.String("rule", matched.description),
		slog.String("inferred_intent", intentKey),
	)
	return &Result{
		InferredIntentKey:  intentKey,
		Reason:             matched.description,
		PreviousBotSnippet: truncate(botText, snippetMaxLen),
		Confidence:         d.confidence,
	}
}

// matchTopicMarker returns the intent key of the first marker whose
// keywords all appear in text (case-insensitive).
func (d *Detector) matchTopicMarker(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, tm := range d.topicMarkers {
		all := true
		for _, kw := range tm.Keywords {
			if !strings.Contains(lowered, strings.ToLower(kw)) {
				all = false
				break
			}
		}
		if all {
			return tm.Intent, true
		}
	}
	return "", false
}

// lastBotMessage scans the thread from newest to oldest for a bot message.
func lastBotMessage(thread []Message) (string, bool) {
	for i := len(thread) - 1; i >= 0; i-- {
		if thread[i].IsBot {
			return thread[i].Text, true
		}
	}
	return "", false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
