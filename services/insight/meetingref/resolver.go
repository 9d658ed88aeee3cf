// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package meetingref decides whether a user query refers to a specific
// meeting. A deterministic regex pass handles the common phrasings for
// free; everything else is escalated to a bounded LLM yes/no check that
// fails closed.
package meetingref

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/pitcrewai/meetinsight/services/insight/config"
	"github.com/pitcrewai/meetinsight/services/insight/providers"
)

var resolverTracer = otel.Tracer("insight.meetingref")

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	resolvePathTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "meetingref",
		Name:      "resolve_path_total",
		Help:      "Meeting reference resolutions by path: regex, llm_yes, llm_no, llm_failed",
	}, []string{"path"})

	llmLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insight",
		Subsystem: "meetingref",
		Name:      "llm_latency_seconds",
		Help:      "Latency of LLM meeting reference checks, including failures",
		Buckets:   prometheus.DefBuckets,
	})
)

// defaultLLMTimeout bounds the semantic fallback so a slow model cannot
// stall the request path.
const defaultLLMTimeout = 5 * time.Second

const classifierPrompt = `You are a classifier for a sales meeting assistant.
Decide whether the user's message refers to a specific meeting or call
(for example "my last call", "the demo yesterday", "our meeting with Acme").

Respond with exactly one word: YES or NO.`

// =============================================================================
// Types
// =============================================================================

// Result captures how a meeting reference decision was reached.
//
// RegexResult is the deterministic pass's answer. When it is true the
// LLM is never consulted: LLMCalled is false and LLMResult and
// LLMLatencyMs are nil. When the LLM is consulted, LLMLatencyMs is
// always populated, including for calls that fail.
type Result struct {
	HasMeetingRef bool
	RegexResult   bool
	LLMCalled     bool
	LLMResult     *bool
	LLMLatencyMs  *int64
}

// Resolver detects meeting references in user queries.
//
// Thread Safety: Safe for concurrent use after construction.
type Resolver struct {
	patterns   []*regexp.Regexp
	chat       providers.ChatClient // nil disables the LLM fallback
	llmTimeout time.Duration
	logger     *slog.Logger
}

// NewResolver creates a Resolver from the rule set's meeting reference
// patterns.
//
// Inputs:
//
//	rs - The validated rule set. Patterns were compile-checked at load.
//	chat - LLM client for the semantic fallback. Nil disables it, in
//	       which case a regex miss is a final no.
//	llmTimeout - Per-call bound. Zero uses the default (5s).
//	logger - Logger instance. May be nil.
//
// Outputs:
//
//	*Resolver - The constructed resolver. Never nil.
func NewResolver(rs *config.RuleSet, chat providers.ChatClient, llmTimeout time.Duration, logger *slog.Logger) *Resolver {
	if llmTimeout <= 0 {
		llmTimeout = defaultLLMTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	patterns := make([]*regexp.Regexp, 0, len(rs.MeetingReference.Patterns))
	for _, pr := range rs.MeetingReference.Patterns {
		re, err := regexp.Compile("(?i)" + pr.Pattern)
		if err != nil {
			// Validate() already rejected invalid patterns at load time.
			logger.Warn("skipping invalid meeting reference pattern",
				slog.String("pattern", pr.Pattern),
				slog.String("error", err.Error()),
			)
			continue
		}
		patterns = append(patterns, re)
	}
	return &Resolver{
		patterns:   patterns,
		chat:       chat,
		llmTimeout: llmTimeout,
		logger:     logger,
	}
}

// =============================================================================
// Resolution
// =============================================================================

// Resolve decides whether text refers to a specific meeting.
//
// Description:
//
//	Runs the regex pass first. On a hit the decision is final and no
//	model call happens. On a miss the LLM fallback is consulted with a
//	bounded context; its latency is recorded whether it succeeds or
//	not. Any failure (timeout, transport error, unparseable reply)
//	resolves to false.
//
// Inputs:
//
//	ctx - Context for cancellation. The LLM call gets a derived timeout.
//	text - The raw user query.
//
// Outputs:
//
//	Result - The decision and how it was reached.
//
// Thread Safety: Safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, text string) Result {
	ctx, span := resolverTracer.Start(ctx, "meetingref.Resolve",
		oteltrace.WithAttributes(attribute.Int("message_length", len(text))),
	)
	defer span.End()

	if r.matchRegex(text) {
		span.SetAttributes(attribute.String("path", "regex"))
		resolvePathTotal.WithLabelValues("regex").Inc()
		return Result{HasMeetingRef: true, RegexResult: true}
	}

	if r.chat == nil {
		span.SetAttributes(attribute.String("path", "regex_miss_no_llm"))
		return Result{}
	}

	llmCtx, cancel := context.WithTimeout(ctx, r.llmTimeout)
	defer cancel()

	start := time.Now()
	reply, err := r.chat.Chat(llmCtx, []providers.Message{
		{Role: "system", Content: classifierPrompt},
		{Role: "user", Content: text},
	}, providers.ChatOptions{Temperature: 0, MaxTokens: 4})
	latencyMs := time.Since(start).Milliseconds()
	llmLatencySeconds.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("path", "llm"),
		attribute.Int64("llm_latency_ms", latencyMs),
	)

	result := Result{LLMCalled: true, LLMLatencyMs: &latencyMs}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "LLM meeting reference check failed")
		r.logger.Warn("meeting reference LLM check failed",
			slog.String("error", err.Error()),
			slog.Int64("latency_ms", latencyMs),
		)
		resolvePathTotal.WithLabelValues("llm_failed").Inc()
		no := false
		result.LLMResult = &no
		return result
	}

	answer, ok := parseYesNo(reply)
	if !ok {
		r.logger.Warn("meeting reference LLM returned unparseable reply",
			slog.String("reply", reply),
		)
		resolvePathTotal.WithLabelValues("llm_failed").Inc()
		no := false
		result.LLMResult = &no
		return result
	}

	result.LLMResult = &answer
	result.HasMeetingRef = answer
	if answer {
		resolvePathTotal.WithLabelValues("llm_yes").Inc()
	} else {
		resolvePathTotal.WithLabelValues("llm_no").Inc()
	}
	return result
}

// ResolveSync runs only the deterministic regex pass. Used where a
// blocking model call is not acceptable.
func (r *Resolver) ResolveSync(text string) bool {
	hit := r.matchRegex(text)
	if hit {
		resolvePathTotal.WithLabelValues("regex").Inc()
	}
	return hit
}

func (r *Resolver) matchRegex(text string) bool {
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// parseYesNo extracts a YES/NO verdict from a model reply. Tolerates
// surrounding whitespace, punctuation, and casing, but rejects replies
// that do not lead with a clear verdict.
func parseYesNo(reply string) (bool, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(reply))
	cleaned = strings.Trim(cleaned, ".!\"'")
	switch {
	case cleaned == "YES" || strings.HasPrefix(cleaned, "YES "):
		return true, true
	case cleaned == "NO" || strings.HasPrefix(cleaned, "NO "):
		return false, true
	default:
		return false, false
	}
}
