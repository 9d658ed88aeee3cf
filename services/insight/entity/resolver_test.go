// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Ivy-Lane, please", []string{"ivy", "lane", "please"}},
		{"  ACME Corp.  ", []string{"acme", "corp"}},
		{"o'reilly media", []string{"o'reilly", "media"}},
		{"(Valvoline)", []string{"valvoline"}},
		{"", []string{}},
		{"---", []string{}},
	}
	for _, tt := range tests {
		if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExtractCompany_ExactTokenNotSubstring(t *testing.T) {
	companies := []Company{{ID: "1", Name: "AL Industries"}}

	// "al" is a variant token of "AL Industries"; "alan" contains it as a
	// substring but is a different token, so it must not match.
	if m := ExtractCompany("I spoke with alan about the deal", companies); m != nil {
		t.Errorf("substring containment matched: %+v", m)
	}
	if m := ExtractCompany("I spoke with al about the deal", companies); m == nil {
		t.Error("exact token should match")
	} else if m.CompanyName != "AL Industries" {
		t.Errorf("company = %q", m.CompanyName)
	}
}

func TestExtractCompany_ParentheticalAlias(t *testing.T) {
	companies := []Company{{ID: "1", Name: "Ivy Lane (Valvoline)"}}

	tests := []struct {
		message string
		variant string
	}{
		{"What happened with Ivy Lane?", "ivy lane"},
		{"Any updates from Valvoline this week?", "valvoline"},
		{"Did ivy-lane sign?", "ivy lane"},
	}
	for _, tt := range tests {
		m := ExtractCompany(tt.message, companies)
		if m == nil {
			t.Errorf("ExtractCompany(%q) = nil", tt.message)
			continue
		}
		if m.CompanyName != "Ivy Lane (Valvoline)" {
			t.Errorf("company = %q, want full stored name", m.CompanyName)
		}
		if m.MatchedVariant != tt.variant {
			t.Errorf("variant = %q, want %q", m.MatchedVariant, tt.variant)
		}
	}
}

func TestExtractCompany_StoreAliases(t *testing.T) {
	companies := []Company{{ID: "1", Name: "Acme Corporation", Aliases: []string{"Acme", "ACME Corp"}}}

	m := ExtractCompany("Did acme corp respond?", companies)
	if m == nil {
		t.Fatal("alias should match")
	}
	if m.CompanyName != "Acme Corporation" {
		t.Errorf("company = %q", m.CompanyName)
	}
}

func TestExtractCompany_MostSpecificVariantWins(t *testing.T) {
	companies := []Company{
		{ID: "1", Name: "Lane Logistics"},
		{ID: "2", Name: "Ivy Lane (Valvoline)"},
	}

	// "ivy lane" (two tokens) must beat the single-token "lane" variant.
	m := ExtractCompany("Catch me up on Ivy Lane", companies)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.CompanyName != "Ivy Lane (Valvoline)" {
		t.Errorf("company = %q, want the two-token match", m.CompanyName)
	}
}

func TestExtractCompany_NoMatch(t *testing.T) {
	companies := []Company{{ID: "1", Name: "Acme Corporation"}}

	if m := ExtractCompany("What are our open action items?", companies); m != nil {
		t.Errorf("unexpected match: %+v", m)
	}
	if m := ExtractCompany("Anything about Acme?", nil); m != nil {
		t.Errorf("empty company set matched: %+v", m)
	}
	if m := ExtractCompany("", companies); m != nil {
		t.Errorf("empty message matched: %+v", m)
	}
}

func TestSplitParenthetical(t *testing.T) {
	tests := []struct {
		in, primary, paren string
	}{
		{"Ivy Lane (Valvoline)", "Ivy Lane", "Valvoline"},
		{"Acme Corporation", "Acme Corporation", ""},
		{"(Valvoline)", "Valvoline", ""},
		{"Bad (unclosed", "Bad (unclosed", ""},
	}
	for _, tt := range tests {
		p, paren := splitParenthetical(tt.in)
		if p != tt.primary || paren != tt.paren {
			t.Errorf("splitParenthetical(%q) = (%q, %q), want (%q, %q)", tt.in, p, paren, tt.primary, tt.paren)
		}
	}
}
