// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package entity resolves known company names inside free-text queries.
// It builds normalized name variants (full phrases, parenthetical aliases,
// and individual tokens) and matches them against message tokens by exact
// equality. It is the cheap, deterministic second stage of the pipeline.
package entity

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var entityMatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Subsystem: "entity",
	Name:      "match_total",
	Help:      "Entity resolution outcomes: matched, no_match, no_companies",
}, []string{"outcome"})

// =============================================================================
// Types
// =============================================================================

// Company is a known company from the entity store.
type Company struct {
	// ID is the store's identifier.
	ID string `json:"id"`

	// Name is the display name, possibly with a parenthetical alias
	// ("Ivy Lane (Valvoline)").
	Name string `json:"name"`

	// Aliases are additional names from the store.
	Aliases []string `json:"aliases,omitempty"`
}

// Match is a resolved company reference inside a message.
type Match struct {
	// CompanyName is the company's full display name as stored.
	CompanyName string

	// MatchedVariant is the normalized variant that matched.
	MatchedVariant string
}

// variant is one matchable form of a company name.
type variant struct {
	tokens      []string
	raw         string
	companyName string
}

// minTokenLen drops single-character variants; they are noise, not names.
const minTokenLen = 2

// =============================================================================
// Resolution
// =============================================================================

// ExtractCompany finds a known company reference in the message.
//
// Description:
//
//	Builds normalized variants for every company (the full name, the
//	parenthetical alias if present, each store alias, and the individual
//	whitespace/hyphen-delimited tokens of all of those), then scans the
//	message for an exact-token or contiguous full-phrase match. The
//	longest (most specific) variant wins when several overlap. Matching
//	is never substring containment.
//
// Inputs:
//
//	text - The raw message.
//	companies - The known-company snapshot. May be empty.
//
// Outputs:
//
//	*Match - The best match, or nil when no known company appears.
func ExtractCompany(text string, companies []Company) *Match {
	if len(companies) == 0 {
		entityMatchTotal.WithLabelValues("no_companies").Inc()
		return nil
	}

	msgTokens := Tokenize(text)
	if len(msgTokens) == 0 {
		entityMatchTotal.WithLabelValues("no_match").Inc()
		return nil
	}

	variants := buildVariants(companies)
	for _, v := range variants {
		if containsTokens(msgTokens, v.tokens) {
			entityMatchTotal.WithLabelValues("matched").Inc()
			return &Match{CompanyName: v.companyName, MatchedVariant: v.raw}
		}
	}

	entityMatchTotal.WithLabelValues("no_match").Inc()
	return nil
}

// buildVariants expands companies into matchable variants, most specific
// first (token count descending, then raw length descending).
func buildVariants(companies []Company) []variant {
	var out []variant
	for _, c := range companies {
		primary, parenthetical := splitParenthetical(c.Name)

		phrases := []string{primary}
		if parenthetical != "" {
			phrases = append(phrases, parenthetical)
		}
		phrases = append(phrases, c.Aliases...)

		seen := make(map[string]bool)
		for _, p := range phrases {
			tokens := Tokenize(p)
			if len(tokens) == 0 {
				continue
			}

			phraseKey := strings.Join(tokens, " ")
			if !seen[phraseKey] {
				seen[phraseKey] = true
				out = append(out, variant{tokens: tokens, raw: phraseKey, companyName: c.Name})
			}

			// Individual tokens of multi-token phrases are variants too.
			if len(tokens) > 1 {
				for _, t := range tokens {
					if len(t) < minTokenLen || seen[t] {
						continue
					}
					seen[t] = true
					out = append(out, variant{tokens: []string{t}, raw: t, companyName: c.Name})
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].tokens) != len(out[j].tokens) {
			return len(out[i].tokens) > len(out[j].tokens)
		}
		return len(out[i].raw) > len(out[j].raw)
	})
	return out
}

// splitParenthetical separates "Ivy Lane (Valvoline)" into its primary name
// and parenthetical alias. Names without a parenthetical return ("name", "").
func splitParenthetical(name string) (primary, parenthetical string) {
	open := strings.Index(name, "(")
	close := strings.LastIndex(name, ")")
	if open == -1 || close == -1 || close < open {
		return name, ""
	}
	primary = strings.TrimSpace(name[:open])
	parenthetical = strings.TrimSpace(name[open+1 : close])
	if primary == "" {
		primary = parenthetical
		parenthetical = ""
	}
	return primary, parenthetical
}

// containsTokens reports whether seq appears as a contiguous subsequence of
// tokens, comparing by exact equality.
func containsTokens(tokens, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return false
	}
	for i := 0; i+len(seq) <= len(tokens); i++ {
		match := true
		for j, s := range seq {
			if tokens[i+j] != s {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
