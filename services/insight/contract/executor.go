// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package contract selects the response contract, display header, and
// coverage disclaimer for a resolved query. Both operations are pure
// lookups over the loaded rule tables; no I/O happens here.
package contract

import (
	"fmt"

	"github.com/pitcrewai/meetinsight/services/insight/config"
)

// =============================================================================
// Contract Tags
// =============================================================================

// Contract tags name the response template an answer should follow.
type Contract string

const (
	ContractMeetingSummary   Contract = "MEETING_SUMMARY"
	ContractCrossMeeting     Contract = "CROSS_MEETING_QUESTIONS"
	ContractPatternAnalysis  Contract = "PATTERN_ANALYSIS"
	ContractComparison       Contract = "COMPARISON"
	ContractTrendSummary     Contract = "TREND_SUMMARY"
	ContractProductAnswer    Contract = "PRODUCT_ANSWER"
	ContractResearchBrief    Contract = "RESEARCH_BRIEF"
	ContractDocumentResults  Contract = "DOCUMENT_RESULTS"
	ContractHelpText         Contract = "HELP_TEXT"
)

// CoverageSummary describes the evidence behind an answer.
type CoverageSummary struct {
	TotalMeetings   int
	UniqueCompanies int
}

// Executor resolves contracts, headers, and coverage disclaimers from
// the rule tables.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Executor struct {
	headers         map[string]string
	intentContracts map[string]Contract
	limitedMax      int
	noteMax         int
}

// NewExecutor builds an Executor from the rule set's header table,
// intent table, and coverage thresholds.
func NewExecutor(rs *config.RuleSet) *Executor {
	intentContracts := make(map[string]Contract, len(rs.Intents))
	for _, ir := range rs.Intents {
		intentContracts[ir.Key] = Contract(ir.Contract)
	}
	return &Executor{
		headers:         rs.ContractHeaders,
		intentContracts: intentContracts,
		limitedMax:      rs.Coverage.LimitedMaxMeetings,
		noteMax:         rs.Coverage.NoteMaxMeetings,
	}
}

// =============================================================================
// Lookups
// =============================================================================

// ForIntent returns the default contract for an intent key. Unknown
// keys map to HELP_TEXT so downstream always has a contract.
func (e *Executor) ForIntent(intentKey string) Contract {
	if c, ok := e.intentContracts[intentKey]; ok {
		return c
	}
	return ContractHelpText
}

// Header returns the display header for a contract tag.
//
// Description:
//
//	Total function: mapped tags return their configured header, unmapped
//	tags return the tag string itself, so a header always exists.
func (e *Executor) Header(c Contract) string {
	if h, ok := e.headers[string(c)]; ok && h != "" {
		return h
	}
	return string(c)
}

// CoverageQualification produces the hedging disclaimer for an
// evidence summary.
//
// Description:
//
//	Three tiers keyed to totalMeetings, bounds inclusive:
//
//	  <= limited_max_meetings  LIMITED COVERAGE, states the count and
//	                           directs hedged language with MUST
//	  <= note_max_meetings     COVERAGE NOTE, states the count
//	  otherwise                plain COVERAGE line
//
// Inputs:
//
//	summary - Meeting and company counts behind the answer.
//
// Outputs:
//
//	string - The disclaimer text. Never empty.
func (e *Executor) CoverageQualification(summary CoverageSummary) string {
	switch {
	case summary.TotalMeetings <= e.limitedMax:
		return fmt.Sprintf(
			"LIMITED COVERAGE: this answer is based on only %d meeting(s) across %d company(ies). "+
				"You MUST use hedged language and state that the sample is too small to generalize.",
			summary.TotalMeetings, summary.UniqueCompanies)
	case summary.TotalMeetings <= e.noteMax:
		return fmt.Sprintf(
			"COVERAGE NOTE: this answer is based on %d meeting(s) across %d company(ies), a moderate sample.",
			summary.TotalMeetings, summary.UniqueCompanies)
	default:
		return fmt.Sprintf(
			"COVERAGE: %d meeting(s) across %d company(ies).",
			summary.TotalMeetings, summary.UniqueCompanies)
	}
}
