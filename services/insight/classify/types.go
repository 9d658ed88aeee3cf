// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classify is the top-level intent router. It composes the
// pattern library, follow-up detector, entity resolver, and an LLM
// semantic fallback into a single classification pipeline that always
// returns a usable result.
package classify

// =============================================================================
// Intents
// =============================================================================

// Intent is the closed set of query classifications. Adding a member
// requires a matching row in the rule set's intent table; nothing is
// inferred implicitly.
type Intent string

const (
	IntentSingleMeeting    Intent = "SINGLE_MEETING"
	IntentMultiMeeting     Intent = "MULTI_MEETING"
	IntentProductKnowledge Intent = "PRODUCT_KNOWLEDGE"
	IntentExternalResearch Intent = "EXTERNAL_RESEARCH"
	IntentDocumentSearch   Intent = "DOCUMENT_SEARCH"
	IntentGeneralHelp      Intent = "GENERAL_HELP"
	IntentClarify          Intent = "CLARIFY"
	IntentRefuse           Intent = "REFUSE"
	IntentSlackSearch      Intent = "SLACK_SEARCH"
)

// =============================================================================
// Detection Provenance
// =============================================================================

// DetectionMethod records which pipeline stage produced a result.
type DetectionMethod int

const (
	// DetectionPattern means a deterministic rule fired. No network call.
	DetectionPattern DetectionMethod = iota

	// DetectionEntity means a known company match drove the decision.
	// No network call.
	DetectionEntity

	// DetectionLLMInterpretation means the semantic fallback decided.
	DetectionLLMInterpretation

	// DetectionDefault means every stage passed and the pipeline fell
	// through to GENERAL_HELP.
	DetectionDefault
)

// String returns the wire/label form of the method.
func (m DetectionMethod) String() string {
	switch m {
	case DetectionPattern:
		return "pattern"
	case DetectionEntity:
		return "entity"
	case DetectionLLMInterpretation:
		return "llm_interpretation"
	case DetectionDefault:
		return "default"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the method as its label string.
func (m DetectionMethod) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// =============================================================================
// Results
// =============================================================================

// Result is a finished classification.
//
// Invariant: DetectionMethod of DetectionPattern or DetectionEntity
// means the result was produced without any network call.
type Result struct {
	Intent          Intent          `json:"intent"`
	Confidence      float64         `json:"confidence"`
	DetectionMethod DetectionMethod `json:"detectionMethod"`

	// NeedsSplit is set for compound requests that should be clarified
	// into separate queries.
	NeedsSplit bool `json:"needsSplit"`

	// SplitOptions are the decomposed candidate sub-queries, in the
	// order they appeared. Empty unless NeedsSplit.
	SplitOptions []string `json:"splitOptions,omitempty"`

	// Reason names the rule or stage that decided, for logging.
	Reason string `json:"reason,omitempty"`

	// MatchedCompany is the resolved company name when entity detection
	// drove the decision.
	MatchedCompany string `json:"matchedCompany,omitempty"`
}
