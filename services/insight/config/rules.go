// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the rule tables that drive the query
// decision pipeline: refusal patterns, greeting allow-list, multi-intent
// detection, entity scope signals, temporal meeting-reference patterns,
// follow-up refinement rules, the intent inference table, and coverage
// qualification thresholds.
//
// Rule tables are immutable after loading. Runtime extension is done by
// loading a new RuleSet and swapping the consuming pipeline, never by
// mutating a loaded table in place.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"sync"

	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Rules
// =============================================================================

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// MaxYAMLFileSize caps rule files at 1 MiB to prevent pathological inputs.
const MaxYAMLFileSize = 1 << 20

// =============================================================================
// OTel Tracer
// =============================================================================

var rulesTracer = otel.Tracer("insight.config.rules")

// =============================================================================
// Rule Set Types
// =============================================================================

// RuleSet is the full, versioned set of classification rules.
//
// Description:
//
//	Contains every table the pipeline stages consume. A RuleSet is
//	validated once at load time; consumers compile their own matchers
//	from it at construction and never mutate it.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type RuleSet struct {
	// Version labels the rule set for logging and cache keys.
	Version string `yaml:"version"`

	// RefusalPatterns match out-of-domain asks (weather, stocks, jokes).
	// Ordered; first match wins.
	RefusalPatterns []PatternRule `yaml:"refusal_patterns"`

	// Greetings are exact, case-sensitive strings mapped to GENERAL_HELP.
	Greetings []string `yaml:"greetings"`

	// MultiIntent detects compound requests that need clarification.
	MultiIntent MultiIntentRules `yaml:"multi_intent"`

	// MultiSignalWords widen a company match from single- to multi-meeting
	// scope ("all", "across", "every").
	MultiSignalWords []string `yaml:"multi_signal_words"`

	// MeetingReference are the regex fast-path patterns for temporal
	// meeting phrasing.
	MeetingReference MeetingReferenceRules `yaml:"meeting_reference"`

	// FollowUp are the refinement patterns and topic markers.
	FollowUp FollowUpRules `yaml:"follow_up"`

	// Intents is the closed inference-rule table. Adding an intent member
	// requires adding a row here; nothing is inferred implicitly.
	Intents []IntentRule `yaml:"intents"`

	// Coverage holds the qualification tier thresholds.
	Coverage CoverageRules `yaml:"coverage"`

	// ContractHeaders maps answer contract tags to display headers.
	// Unmapped tags fall back to the tag itself at lookup time.
	ContractHeaders map[string]string `yaml:"contract_headers"`
}

// PatternRule pairs a regex pattern with a human-readable description.
type PatternRule struct {
	// Pattern is a regular expression, compiled case-insensitively.
	Pattern string `yaml:"pattern"`

	// Description explains what the rule catches (for logging/tracing).
	Description string `yaml:"description"`
}

// MultiIntentRules detect conjunctions joining two actionable requests.
//
// Description:
//
//	A message fires when an action verb appears, then a conjunction,
//	then a second action verb ("summarize X and then email Y"). The
//	match yields CLARIFY with needsSplit and the decomposed options.
type MultiIntentRules struct {
	// ActionVerbs are verbs that start an actionable request.
	ActionVerbs []string `yaml:"action_verbs"`

	// Conjunctions join two requests. Multi-word entries are matched as
	// contiguous token subsequences; longest entries are tried first.
	Conjunctions []string `yaml:"conjunctions"`

	// Confidence is reported for a multi-intent match. Default 0.9.
	Confidence float64 `yaml:"confidence"`
}

// MeetingReferenceRules hold the regex fast path for temporal phrasing.
type MeetingReferenceRules struct {
	// Patterns are ordered; any match short-circuits the LLM stage.
	Patterns []PatternRule `yaml:"patterns"`
}

// FollowUpRules drive refinement detection against a conversation thread.
type FollowUpRules struct {
	// Patterns match refinement phrasing ("make it shorter", "try again").
	// Ordered; first match wins.
	Patterns []PatternRule `yaml:"patterns"`

	// TopicMarkers infer which prior intent a follow-up refines by
	// inspecting the most recent bot message. Ordered; first marker whose
	// keywords all appear wins.
	TopicMarkers []TopicMarker `yaml:"topic_markers"`

	// DefaultIntent is used when no topic marker matches.
	DefaultIntent string `yaml:"default_intent"`

	// Confidence is reported for every matched follow-up. The value is
	// uniform across patterns; it does not scale with match specificity.
	// Default 0.85.
	Confidence float64 `yaml:"confidence"`
}

// TopicMarker maps keywords in a bot message to an inferred intent key.
type TopicMarker struct {
	// Keywords must all appear in the bot message (case-insensitive).
	Keywords []string `yaml:"keywords"`

	// Intent is the inferred intent key. Must exist in the intent table.
	Intent string `yaml:"intent"`
}

// IntentRule is one row of the closed intent inference table.
type IntentRule struct {
	// Key is the intent tag (e.g. "SINGLE_MEETING").
	Key string `yaml:"key"`

	// Contract is the default answer contract for the intent.
	Contract string `yaml:"contract"`

	// Description documents when the intent applies (used in LLM prompts).
	Description string `yaml:"description"`
}

// CoverageRules hold the qualification tier thresholds.
//
// Description:
//
//	totalMeetings <= LimitedMaxMeetings        -> LIMITED COVERAGE tier
//	totalMeetings <= NoteMaxMeetings           -> COVERAGE NOTE tier
//	otherwise                                  -> plain COVERAGE tier
//
// Both bounds are inclusive. These are policy constants, not derived values.
type CoverageRules struct {
	LimitedMaxMeetings int `yaml:"limited_max_meetings"`
	NoteMaxMeetings    int `yaml:"note_max_meetings"`
}

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultFollowUpConfidence is reported for every matched follow-up.
	DefaultFollowUpConfidence = 0.85

	// DefaultMultiIntentConfidence is reported for a compound request.
	DefaultMultiIntentConfidence = 0.9

	// DefaultLimitedMaxMeetings is the inclusive upper bound of the
	// LIMITED COVERAGE tier.
	DefaultLimitedMaxMeetings = 2

	// DefaultNoteMaxMeetings is the inclusive upper bound of the
	// COVERAGE NOTE tier.
	DefaultNoteMaxMeetings = 5
)

// =============================================================================
// Singleton Rule Set
// =============================================================================

var (
	ruleSetMu      sync.RWMutex
	cachedRuleSet  *RuleSet
	ruleSetLoadErr error
)

// GetRuleSet returns the cached default rule set.
//
// Description:
//
//	Loads the embedded rules on first call and caches for subsequent
//	calls. Hot reload does not go through this cache; the watcher loads
//	fresh RuleSets and the service swaps the pipeline.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*RuleSet - The loaded rule set. Never nil on success.
//	error - Non-nil if loading or validation failed.
//
// Thread Safety: Safe for concurrent use.
func GetRuleSet(ctx context.Context) (*RuleSet, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetRuleSet: ctx must not be nil")
	}

	ruleSetMu.RLock()
	if cachedRuleSet != nil || ruleSetLoadErr != nil {
		rs, err := cachedRuleSet, ruleSetLoadErr
		ruleSetMu.RUnlock()
		return rs, err
	}
	ruleSetMu.RUnlock()

	ruleSetMu.Lock()
	defer ruleSetMu.Unlock()

	if cachedRuleSet == nil && ruleSetLoadErr == nil {
		cachedRuleSet, ruleSetLoadErr = LoadRuleSet(ctx, defaultRulesYAML)
	}
	return cachedRuleSet, ruleSetLoadErr
}

// ResetRuleSet resets the cached rule set for testing.
//
// Thread Safety: Safe for concurrent use.
func ResetRuleSet() {
	ruleSetMu.Lock()
	defer ruleSetMu.Unlock()
	cachedRuleSet = nil
	ruleSetLoadErr = nil
}

// =============================================================================
// Loading & Validation
// =============================================================================

// LoadRuleSet loads and validates a RuleSet from YAML bytes.
//
// Description:
//
//	Parses the YAML, applies defaults for missing confidence values and
//	coverage thresholds, and validates all tables (patterns compile,
//	intent keys unique, markers reference known intents).
//
// Inputs:
//
//	ctx - Context for tracing.
//	data - Raw YAML bytes to parse.
//
// Outputs:
//
//	*RuleSet - The validated rule set.
//	error - Non-nil if parsing or validation fails.
func LoadRuleSet(ctx context.Context, data []byte) (*RuleSet, error) {
	_, span := rulesTracer.Start(ctx, "config.LoadRuleSet")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadRuleSet: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadRuleSet: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("LoadRuleSet: parsing YAML: %w", err)
	}

	rs.applyDefaults()
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("LoadRuleSet: %w", err)
	}
	return &rs, nil
}

// applyDefaults fills zero-valued policy constants with their defaults.
func (rs *RuleSet) applyDefaults() {
	if rs.FollowUp.Confidence <= 0 {
		rs.FollowUp.Confidence = DefaultFollowUpConfidence
	}
	if rs.MultiIntent.Confidence <= 0 {
		rs.MultiIntent.Confidence = DefaultMultiIntentConfidence
	}
	if rs.Coverage.LimitedMaxMeetings <= 0 {
		rs.Coverage.LimitedMaxMeetings = DefaultLimitedMaxMeetings
	}
	if rs.Coverage.NoteMaxMeetings <= 0 {
		rs.Coverage.NoteMaxMeetings = DefaultNoteMaxMeetings
	}
}

// Validate checks the rule set for internal consistency.
//
// Description:
//
//	Compiles every regex pattern, checks the intent table for duplicate
//	keys, and verifies that follow-up markers and the follow-up default
//	reference intents that exist in the table.
//
// Outputs:
//
//	error - Non-nil describing the first problem found.
func (rs *RuleSet) Validate() error {
	for i, pr := range rs.RefusalPatterns {
		if err := checkPattern(pr.Pattern); err != nil {
			return fmt.Errorf("refusal_patterns[%d]: %w", i, err)
		}
	}
	for i, pr := range rs.MeetingReference.Patterns {
		if err := checkPattern(pr.Pattern); err != nil {
			return fmt.Errorf("meeting_reference.patterns[%d]: %w", i, err)
		}
	}
	for i, pr := range rs.FollowUp.Patterns {
		if err := checkPattern(pr.Pattern); err != nil {
			return fmt.Errorf("follow_up.patterns[%d]: %w", i, err)
		}
	}

	if len(rs.Intents) == 0 {
		return fmt.Errorf("intent table is empty")
	}
	seen := make(map[string]bool, len(rs.Intents))
	for i, ir := range rs.Intents {
		if ir.Key == "" {
			return fmt.Errorf("intents[%d]: empty key", i)
		}
		if seen[ir.Key] {
			return fmt.Errorf("intents[%d]: duplicate key %q", i, ir.Key)
		}
		seen[ir.Key] = true
	}

	for i, tm := range rs.FollowUp.TopicMarkers {
		if len(tm.Keywords) == 0 {
			return fmt.Errorf("follow_up.topic_markers[%d]: no keywords", i)
		}
		if !seen[tm.Intent] {
			return fmt.Errorf("follow_up.topic_markers[%d]: unknown intent %q", i, tm.Intent)
		}
	}
	if rs.FollowUp.DefaultIntent != "" && !seen[rs.FollowUp.DefaultIntent] {
		return fmt.Errorf("follow_up.default_intent: unknown intent %q", rs.FollowUp.DefaultIntent)
	}

	if rs.FollowUp.Confidence > 1 {
		return fmt.Errorf("follow_up.confidence must be in (0,1], got %v", rs.FollowUp.Confidence)
	}
	if rs.MultiIntent.Confidence > 1 {
		return fmt.Errorf("multi_intent.confidence must be in (0,1], got %v", rs.MultiIntent.Confidence)
	}
	if rs.Coverage.NoteMaxMeetings <= rs.Coverage.LimitedMaxMeetings {
		return fmt.Errorf("coverage: note_max_meetings (%d) must exceed limited_max_meetings (%d)",
			rs.Coverage.NoteMaxMeetings, rs.Coverage.LimitedMaxMeetings)
	}
	return nil
}

// IntentKeys returns the ordered intent keys of the inference table.
func (rs *RuleSet) IntentKeys() []string {
	keys := make([]string, len(rs.Intents))
	for i, ir := range rs.Intents {
		keys[i] = ir.Key
	}
	return keys
}

// checkPattern verifies a rule pattern compiles as a case-insensitive regex.
func checkPattern(p string) error {
	if p == "" {
		return fmt.Errorf("empty pattern")
	}
	if _, err := regexp.Compile("(?i)" + p); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", p, err)
	}
	return nil
}
