// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package patterns

import (
	"context"
	"testing"

	"github.com/pitcrewai/meetinsight/services/insight/config"
)

func testLibrary(t *testing.T) *Library {
	t.Helper()
	rs, err := config.GetRuleSet(context.Background())
	if err != nil {
		t.Fatalf("loading default rules: %v", err)
	}
	lib, err := NewLibrary(rs, nil)
	if err != nil {
		t.Fatalf("building library: %v", err)
	}
	return lib
}

func TestMatchRefusal(t *testing.T) {
	lib := testLibrary(t)

	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"weather question", "What's the weather like in Detroit?", true},
		{"stock price", "what is the stock price of Ford today", true},
		{"joke request", "tell me a joke", true},
		{"poem request", "write me a poem about sales", true},
		{"in-domain question", "What did we discuss with Acme last week?", false},
		{"empty message", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, matched := lib.MatchRefusal(tt.message)
			if matched != tt.want {
				t.Errorf("MatchRefusal(%q) = %v, want %v", tt.message, matched, tt.want)
			}
			if matched && reason == "" {
				t.Error("matched refusal must carry a reason")
			}
		})
	}
}

func TestMatchGreeting(t *testing.T) {
	lib := testLibrary(t)

	tests := []struct {
		message string
		want    bool
	}{
		{"hi", true},
		{"  hi  ", true}, // whitespace trimmed
		{"hello", true},
		{"thanks!", true},
		{"good morning", true},
		{"Hi", false},       // case-sensitive
		{"hi there", false}, // anything beyond a bare greeting classifies
		{"", false},
	}
	for _, tt := range tests {
		if got := lib.MatchGreeting(tt.message); got != tt.want {
			t.Errorf("MatchGreeting(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestMatchMultiIntent(t *testing.T) {
	lib := testLibrary(t)

	m, ok := lib.MatchMultiIntent("Summarize the Acme call and then email the summary to Bob")
	if !ok {
		t.Fatal("expected multi-intent match")
	}
	if m.Conjunction != "and then" {
		t.Errorf("conjunction = %q, want \"and then\" (longest conjunction wins)", m.Conjunction)
	}
	if len(m.SplitOptions) != 2 {
		t.Fatalf("split options = %v, want two halves", m.SplitOptions)
	}
	if m.SplitOptions[0] != "Summarize the Acme call" {
		t.Errorf("first option = %q", m.SplitOptions[0])
	}
	if m.SplitOptions[1] != "email the summary to Bob" {
		t.Errorf("second option = %q", m.SplitOptions[1])
	}
	if m.Confidence != config.DefaultMultiIntentConfidence {
		t.Errorf("confidence = %v, want %v", m.Confidence, config.DefaultMultiIntentConfidence)
	}
}

func TestMatchMultiIntent_NoSecondVerb(t *testing.T) {
	lib := testLibrary(t)

	// A conjunction without an actionable verb on both sides is one request.
	if _, ok := lib.MatchMultiIntent("Summarize the pricing and the timeline discussion"); ok {
		t.Error("single request with 'and' must not fire")
	}
	if _, ok := lib.MatchMultiIntent("What did Acme and Valvoline say?"); ok {
		t.Error("no action verbs at all must not fire")
	}
	if _, ok := lib.MatchMultiIntent("summarize and"); ok {
		t.Error("too-short message must not fire")
	}
}

func TestHasMultiSignal(t *testing.T) {
	lib := testLibrary(t)

	tests := []struct {
		message string
		want    bool
	}{
		{"What are the themes across all our meetings?", true},
		{"Show every objection we heard", true},
		{"What did Acme say about pricing?", false},
		{"The overall tone was positive", false}, // substring, not a token
	}
	for _, tt := range tests {
		if got := lib.HasMultiSignal(tt.message); got != tt.want {
			t.Errorf("HasMultiSignal(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestNewLibrary_NilRuleSet(t *testing.T) {
	if _, err := NewLibrary(nil, nil); err == nil {
		t.Error("expected error for nil rule set")
	}
}
