// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entity

import "strings"

// Normalization and tokenization boundary rules for entity matching.
//
// Matching is on exact token equality against name-derived variants, never
// substring containment: "al" must not match inside "alan". Every company
// variant and every message both pass through the same Normalize/Tokenize
// pair, so the equality domain is identical on both sides.

// tokenPunct is the punctuation stripped from token edges. Interior
// characters are kept ("o'reilly" stays one token).
const tokenPunct = ".,;:!?\"'()[]{}"

// Normalize lowercases and trims a name or message for matching.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Tokenize splits normalized text into matching tokens.
//
// Description:
//
//	Splits on whitespace and hyphens, strips edge punctuation, and drops
//	empties. "Ivy-Lane, please" tokenizes to ["ivy", "lane", "please"].
//
// Inputs:
//
//	s - Raw text; normalized internally.
//
// Outputs:
//
//	[]string - The tokens, in order. Never nil, possibly empty.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '-'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.Trim(f, tokenPunct)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
