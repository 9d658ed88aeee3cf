// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers defines the provider-agnostic chat interface used by the
// query decision pipeline for its two LLM calls: the meeting-reference
// YES/NO check and the semantic intent interpretation. The pipeline treats
// the completion service as opaque; adapters translate to a concrete API.
//
// Thread Safety:
//
//	All interfaces in this package must be implemented as safe for
//	concurrent use.
package providers

import "context"

// ChatClient is the minimal single-turn chat interface the pipeline needs.
//
// Description:
//
//	Classification calls are simple system+user exchanges with a short
//	free-text reply (no tool calls, no streaming). Keeping the interface
//	this small makes adapters trivial and mocks one struct in tests.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends messages and returns the assistant's response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout. Callers bound every
	//     classification call with a deadline; implementations must honor it.
	//   - messages: Conversation messages (system, user).
	//   - opts: Provider-agnostic chat options.
	//
	// Outputs:
	//   - string: The assistant's response text.
	//   - error: Non-nil on failure. Callers degrade, never propagate.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}

// Message is a single chat message.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// ChatOptions holds provider-agnostic options for a chat request.
type ChatOptions struct {
	// Temperature controls randomness. Classification calls use 0.0 for
	// the most deterministic output.
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// Model overrides the adapter's default model when non-empty.
	Model string
}
