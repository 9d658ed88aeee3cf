// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitcrewai/meetinsight/services/insight/config"
)

func testExecutor(t *testing.T) *Executor {
	t.Helper()
	rs, err := config.GetRuleSet(context.Background())
	require.NoError(t, err)
	return NewExecutor(rs)
}

func TestHeader_MappedContracts(t *testing.T) {
	e := testExecutor(t)

	assert.Equal(t, "Cross-Meeting Analysis", e.Header(ContractCrossMeeting))
	assert.Equal(t, "Meeting Summary", e.Header(ContractMeetingSummary))
	assert.Equal(t, "Pattern Analysis", e.Header(ContractPatternAnalysis))
}

func TestHeader_UnmappedContractFallsBackToTag(t *testing.T) {
	e := testExecutor(t)

	// Total function: an undefined tag returns itself verbatim.
	assert.Equal(t, "SOME_FUTURE_CONTRACT", e.Header(Contract("SOME_FUTURE_CONTRACT")))
}

func TestHeader_EveryIntentContractHasNonEmptyHeader(t *testing.T) {
	rs, err := config.GetRuleSet(context.Background())
	require.NoError(t, err)
	e := NewExecutor(rs)

	for _, ir := range rs.Intents {
		assert.NotEmpty(t, e.Header(Contract(ir.Contract)), "contract %s", ir.Contract)
	}
}

func TestForIntent(t *testing.T) {
	e := testExecutor(t)

	assert.Equal(t, ContractMeetingSummary, e.ForIntent("SINGLE_MEETING"))
	assert.Equal(t, ContractCrossMeeting, e.ForIntent("MULTI_MEETING"))
	assert.Equal(t, ContractProductAnswer, e.ForIntent("PRODUCT_KNOWLEDGE"))
	assert.Equal(t, ContractHelpText, e.ForIntent("NOT_AN_INTENT"))
}

func TestCoverageQualification_LimitedTier(t *testing.T) {
	e := testExecutor(t)

	for _, total := range []int{0, 1, 2} {
		q := e.CoverageQualification(CoverageSummary{TotalMeetings: total, UniqueCompanies: 1})
		assert.Contains(t, q, "LIMITED COVERAGE", "total=%d", total)
		assert.Contains(t, q, "MUST", "total=%d", total)
	}

	q := e.CoverageQualification(CoverageSummary{TotalMeetings: 1, UniqueCompanies: 1})
	assert.Contains(t, q, "1 meeting(s)")
}

func TestCoverageQualification_NoteTier(t *testing.T) {
	e := testExecutor(t)

	q := e.CoverageQualification(CoverageSummary{TotalMeetings: 4, UniqueCompanies: 2})
	assert.Contains(t, q, "COVERAGE NOTE")
	assert.Contains(t, q, "4 meeting(s)")
	assert.NotContains(t, q, "LIMITED COVERAGE")
	assert.NotContains(t, q, "MUST")
}

func TestCoverageQualification_PlainTier(t *testing.T) {
	e := testExecutor(t)

	q := e.CoverageQualification(CoverageSummary{TotalMeetings: 10, UniqueCompanies: 5})
	assert.Contains(t, q, "COVERAGE:")
	assert.Contains(t, q, "10 meeting(s)")
	assert.NotContains(t, q, "LIMITED COVERAGE")
	assert.NotContains(t, q, "COVERAGE NOTE")
	assert.NotContains(t, q, "MUST")
}

func TestCoverageQualification_TierBoundaries(t *testing.T) {
	e := testExecutor(t)

	// Inclusive bounds: 2 is still LIMITED, 5 is still NOTE, 6 is plain.
	assert.Contains(t, e.CoverageQualification(CoverageSummary{TotalMeetings: 2}), "LIMITED COVERAGE")
	assert.Contains(t, e.CoverageQualification(CoverageSummary{TotalMeetings: 3}), "COVERAGE NOTE")
	assert.Contains(t, e.CoverageQualification(CoverageSummary{TotalMeetings: 5}), "COVERAGE NOTE")
	q := e.CoverageQualification(CoverageSummary{TotalMeetings: 6})
	assert.NotContains(t, q, "COVERAGE NOTE")
	assert.NotContains(t, q, "LIMITED")
}
