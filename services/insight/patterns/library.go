// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package patterns implements the pattern library: the free, deterministic
// first stage of the query decision pipeline. Refusal patterns, the greeting
// allow-list, and multi-intent conjunction detection all live here. A match
// at this stage resolves the query with zero network calls.
package patterns

import (
	"fmt"
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

var patternRuleHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Subsystem: "patterns",
	Name:      "rule_hits_total",
	Help:      "Fast-path rule hits by type: refusal, greeting, multi_intent",
}, []string{"rule_type"})

// =============================================================================
// Library Types
// =============================================================================

// compiledRule holds a rule's pre-compiled regex and its description.
type compiledRule struct {
	re          *regexp.Regexp
	description string
}

// MultiIntentMatch describes a detected compound request.
type MultiIntentMatch struct {
	// SplitOptions are the decomposed sub-requests, in message order.
	// Always has at least two entries.
	SplitOptions []string

	// Conjunction is the phrase that joined the requests.
	Conjunction string

	// Confidence is the configured multi-intent confidence (>= 0.9).
	Confidence float64
}

// Library is the compiled pattern library.
//
// Description:
//
//	Compiled once from a RuleSet at construction. Rules are ordered and
//	first match wins; the tables are immutable for the library's
//	lifetime. Swapping rules means building a new Library.
//
// Thread Safety: Safe for concurrent use (all state is read-only after
// construction).
type Library struct {
	refusal         []compiledRule
	greetings       map[string]struct{}
	actionVerbs     map[string]struct{}
	conjunctions    [][]string
	multiConfidence float64
	multiSignal     map[string]struct{}
	logger          *slog.Logger
}

// NewLibrary compiles a pattern library from the given rule set.
//
// Inputs:
//
//	rs - Validated rule set. Must not be nil.
//	logger - Logger instance. May be nil.
//
// Outputs:
//
//	*Library - The compiled library.
//	error - Non-nil if rs is nil or a pattern fails to compile (the rule
//	        set validator makes this unreachable for loaded rule sets).
func NewLibrary(rs *config.RuleSet, logger *slog.Logger) (*Library, error) {
	if rs == nil {
		return nil, fmt.Errorf("NewLibrary: rule set must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	lib := &Library{
		greetings:       make(map[string]struct{}, len(rs.Greetings)),
		actionVerbs:     make(map[string]struct{}, len(rs.MultiIntent.ActionVerbs)),
		multiSignal:     make(map[string]struct{}, len(rs.MultiSignalWords)),
		multiConfidence: rs.MultiIntent.Confidence,
		logger:          logger,
	}

	for _, pr := range rs.RefusalPatterns {
		re, err := regexp.Compile("(?i)" + pr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("NewLibrary: refusal pattern %q: %w", pr.Pattern, err)
		}
		lib.refusal = append(lib.refusal, compiledRule{re: re, description: pr.Description})
	}

	for _, g := range rs.Greetings {
		lib.greetings[g] = struct{}{}
	}
	for _, v := range rs.MultiIntent.ActionVerbs {
		lib.actionVerbs[strings.ToLower(v)] = struct{}{}
	}
	for _, w := range rs.MultiSignalWords {
		lib.multiSignal[strings.ToLower(w)] = struct{}{}
	}

	// Longest conjunctions first so "and then" wins over "and".
	conjunctions := make([][]string, 0, len(rs.MultiIntent.Conjunctions))
	for _, c := range rs.MultiIntent.Conjunctions {
		words := strings.Fields(strings.ToLower(c))
		if len(words) > 0 {
			conjunctions = append(conjunctions, words)
		}
	}
	for i := 0; i < len(conjunctions); i++ {
		for j := i + 1; j < len(conjunctions); j++ {
			if len(conjunctions[j]) > len(conjunctions[i]) {
				conjunctions[i], conjunctions[j] = conjunctions[j], conjunctions[i]
			}
		}
	}
	lib.conjunctions = conjunctions

	return lib, nil
}

// MatchRefusal checks the message against the refusal pattern set.
//
// Description:
//
//	Ordered scan, first match wins. A hit resolves the query as REFUSE
//	before any other stage runs, including LLM calls.
//
// Inputs:
//
//	text - The raw message.
//
// Outputs:
//
//	reason - The matched rule's description. Empty when no match.
//	matched - True if any refusal pattern matched.
func (l *Library) MatchRefusal(text string) (reason string, matched bool) {
	for _, cr := range l.refusal {
		if cr.re.MatchString(text) {
			patternRuleHits.WithLabelValues("refusal").Inc()
			return cr.description, true
		}
	}
	return "", false
}

// MatchGreeting checks the message against the greeting allow-list.
//
// Description:
//
//	Exact, case-sensitive match of the whitespace-trimmed message.
//	"hi" matches; "Hi there" does not. Anything beyond a bare greeting
//	deserves real classification.
//
// Inputs:
//
//	text - The raw message.
//
// Outputs:
//
//	bool - True if the trimmed message is on the allow-list.
func (l *Library) MatchGreeting(text string) bool {
	if _, ok := l.greetings[strings.TrimSpace(text)]; ok {
		patternRuleHits.WithLabelValues("greeting").Inc()
		return true
	}
	return false
}

// MatchMultiIntent detects conjunctions joining two actionable requests.
//
// Description:
//
//	Fires when an action verb appears before a conjunction and another
//	action verb appears after it ("summarize the meeting and then email
//	the pricing"). Longest conjunction wins. The message is split at the
//	conjunction to produce the candidate decomposition.
//
// Inputs:
//
//	text - The raw message.
//
// Outputs:
//
//	*MultiIntentMatch - The decomposition. Nil when no match.
//	bool - True if a compound request was detected.
func (l *Library) MatchMultiIntent(text string) (*MultiIntentMatch, bool) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 3 {
		return nil, false
	}

	verbAt := make([]bool, len(words))
	anyVerb := false
	for i, w := range words {
		if _, ok := l.actionVerbs[trimWordPunct(w)]; ok {
			verbAt[i] = true
			anyVerb = true
		}
	}
	if !anyVerb {
		return nil, false
	}

	for _, conj := range l.conjunctions {
		for pos := 1; pos+len(conj) < len(words); pos++ {
			if !wordsMatchAt(words, pos, conj) {
				continue
			}
			if !anyTrue(verbAt[:pos]) || !anyTrue(verbAt[pos+len(conj):]) {
				continue
			}

			phrase := strings.Join(conj, " ")
			first, second := splitAtConjunction(text, phrase)
			if first == "" || second == "" {
				continue
			}

			patternRuleHits.WithLabelValues("multi_intent").Inc()
			l.logger.Info("multi-intent request detected",
				slog.String("conjunction", phrase),
			)
			return &MultiIntentMatch{
				SplitOptions: []string{first, second},
				Conjunction:  phrase,
				Confidence:   l.multiConfidence,
			}, true
		}
	}
	return nil, false
}

// HasMultiSignal reports whether the message carries a multi-meeting scope
// word ("all", "across", "every").
//
// Inputs:
//
//	text - The raw message.
//
// Outputs:
//
//	bool - True if any multi-signal word appears as a whole token.
func (l *Library) HasMultiSignal(text string) bool {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, ok := l.multiSignal[trimWordPunct(w)]; ok {
			return true
		}
	}
	return false
}

// =============================================================================
// Helpers
// =============================================================================

// wordsMatchAt reports whether seq appears in words starting at pos,
// comparing punctuation-trimmed tokens.
func wordsMatchAt(words []string, pos int, seq []string) bool {
	for i, s := range seq {
		if trimWordPunct(words[pos+i]) != s {
			return false
		}
	}
	return true
}

// anyTrue reports whether any element of the slice is true.
func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}

// trimWordPunct strips leading/trailing punctuation from a token.
func trimWordPunct(w string) string {
	return strings.Trim(w, ".,;:!?\"'()[]")
}

// splitAtConjunction splits text at the first whole-word occurrence of the
// conjunction phrase, returning the trimmed halves.
func splitAtConjunction(text, phrase string) (first, second string) {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	if err != nil {
		return "", ""
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return "", ""
	}
	first = strings.TrimSpace(strings.Trim(text[:loc[0]], " ,"))
	second = strings.TrimSpace(strings.Trim(text[loc[1]:], " ,"))
	return first, second
}
