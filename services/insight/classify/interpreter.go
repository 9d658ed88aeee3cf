// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pitcrewai/meetinsight/services/insight/config"
	"github.com/pitcrewai/meetinsight/services/insight/providers"
)

var interpreterTracer = otel.Tracer("insight.classify.interpreter")

// defaultInterpretTimeout bounds each semantic call.
const defaultInterpretTimeout = 8 * time.Second

// =============================================================================
// Wire Types
// =============================================================================

// Interpretation is the structured guess returned by the semantic stage.
type Interpretation struct {
	Intent   string `json:"intent"`
	Contract string `json:"contract"`
	Summary  string `json:"summary"`
}

// Validation is the second-opinion result for low-confidence intents.
type Validation struct {
	Confirmed       bool   `json:"confirmed"`
	SuggestedIntent string `json:"suggestedIntent"`
	Reason          string `json:"reason"`
}

// =============================================================================
// Interpreter
// =============================================================================

// Interpreter runs the LLM semantic stages: free-text intent
// interpretation and low-confidence validation.
//
// Description:
//
//	The model is treated as opaque and unreliable. Replies are parsed
//	tolerantly (markdown fences stripped, outermost JSON object
//	extracted) and every structural failure returns a RouterError
//	rather than a partial result. The pipeline maps those errors to its
//	default intent; callers never see a half-parsed interpretation.
//
// Thread Safety: Safe for concurrent use after construction.
type Interpreter struct {
	chat       providers.ChatClient
	intents    []config.IntentRule
	intentKeys map[string]bool
	timeout    time.Duration
	logger     *slog.Logger
}

// NewInterpreter creates an Interpreter over the rule set's intent table.
//
// Inputs:
//
//	rs - The validated rule set. Its intent descriptions build the prompt.
//	chat - The LLM client. Must not be nil.
//	timeout - Per-call bound. Zero uses the default (8s).
//	logger - Logger instance. May be nil.
func NewInterpreter(rs *config.RuleSet, chat providers.ChatClient, timeout time.Duration, logger *slog.Logger) *Interpreter {
	if chat == nil {
		panic("NewInterpreter: chat must not be nil")
	}
	if timeout <= 0 {
		timeout = defaultInterpretTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	keys := make(map[string]bool, len(rs.Intents))
	for _, ir := range rs.Intents {
		keys[ir.Key] = true
	}
	return &Interpreter{
		chat:       chat,
		intents:    rs.Intents,
		intentKeys: keys,
		timeout:    timeout,
		logger:     logger,
	}
}

// Interpret asks the model to classify a query into the intent table.
//
// Outputs:
//
//	*Interpretation - The structured guess. Intent is guaranteed to be
//	                  a key of the intent table.
//	error - A *RouterError on any transport, parse, or hallucination
//	        failure.
func (it *Interpreter) Interpret(ctx context.Context, query string) (*Interpretation, error) {
	ctx, span := interpreterTracer.Start(ctx, "classify.Interpret")
	defer span.End()

	llmCtx, cancel := context.WithTimeout(ctx, it.timeout)
	defer cancel()

	reply, err := it.chat.Chat(llmCtx, []providers.Message{
		{Role: "system", Content: it.interpretPrompt()},
		{Role: "user", Content: query},
	}, providers.ChatOptions{Temperature: 0, MaxTokens: 300})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "interpretation call failed")
		if llmCtx.Err() == context.DeadlineExceeded {
			return nil, NewRouterError(ErrCodeTimeout, "intent interpretation timed out", true)
		}
		return nil, NewRouterError(ErrCodeLLMError,
			fmt.Sprintf("intent interpretation call failed: %v", err), true)
	}

	var parsed Interpretation
	if err := parseJSONReply(reply, &parsed); err != nil {
		span.SetStatus(codes.Error, "interpretation reply not parseable")
		return nil, NewRouterError(ErrCodeParseError,
			fmt.Sprintf("interpretation reply not parseable: %v", err), false)
	}

	parsed.Intent = strings.ToUpper(strings.TrimSpace(parsed.Intent))
	if !it.intentKeys[parsed.Intent] {
		span.SetStatus(codes.Error, "model returned unknown intent")
		return nil, NewRouterError(ErrCodeParseError,
			fmt.Sprintf("model returned unknown intent: %s", parsed.Intent), false)
	}
	span.SetAttributes(attribute.String("intent", parsed.Intent))
	return &parsed, nil
}

// Validate asks the model for a second opinion on a low-confidence intent.
//
// Outputs:
//
//	*Validation - The verdict. SuggestedIntent, when present, is
//	              guaranteed to be a key of the intent table.
//	error - A *RouterError on any failure. Callers keep the original
//	        intent when validation fails.
func (it *Interpreter) Validate(ctx context.Context, query string, intent Intent) (*Validation, error) {
	llmCtx, cancel := context.WithTimeout(ctx, it.timeout)
	defer cancel()

	userMsg := fmt.Sprintf("Query: %s\nProposed intent: %s", query, intent)
	reply, err := it.chat.Chat(llmCtx, []providers.Message{
		{Role: "system", Content: it.validatePrompt()},
		{Role: "user", Content: userMsg},
	}, providers.ChatOptions{Temperature: 0, MaxTokens: 200})
	if err != nil {
		if llmCtx.Err() == context.DeadlineExceeded {
			return nil, NewRouterError(ErrCodeTimeout, "intent validation timed out", true)
		}
		return nil, NewRouterError(ErrCodeLLMError,
			fmt.Sprintf("intent validation call failed: %v", err), true)
	}

	var parsed Validation
	if err := parseJSONReply(reply, &parsed); err != nil {
		return nil, NewRouterError(ErrCodeParseError,
			fmt.Sprintf("validation reply not parseable: %v", err), false)
	}

	parsed.SuggestedIntent = strings.ToUpper(strings.TrimSpace(parsed.SuggestedIntent))
	if parsed.SuggestedIntent != "" && !it.intentKeys[parsed.SuggestedIntent] {
		return nil, NewRouterError(ErrCodeParseError,
			fmt.Sprintf("model suggested unknown intent: %s", parsed.SuggestedIntent), false)
	}
	return &parsed, nil
}

// =============================================================================
// Prompts
// =============================================================================

func (it *Interpreter) interpretPrompt() string {
	var b strings.Builder
	b.WriteString("You are the query classifier for a sales meeting assistant.\n")
	b.WriteString("Classify the user's query into exactly one of these intents:\n\n")
	for _, ir := range it.intents {
		fmt.Fprintf(&b, "- %s: %s\n", ir.Key, ir.Description)
	}
	b.WriteString("\nRespond with a single JSON object and nothing else:\n")
	b.WriteString(`{"intent": "<INTENT>", "contract": "<CONTRACT>", "summary": "<one sentence restating the query>"}`)
	return b.String()
}

func (it *Interpreter) validatePrompt() string {
	var b strings.Builder
	b.WriteString("You review intent classifications for a sales meeting assistant.\n")
	b.WriteString("Given a query and a proposed intent, decide if the intent fits.\n")
	b.WriteString("Valid intents:\n\n")
	for _, ir := range it.intents {
		fmt.Fprintf(&b, "- %s: %s\n", ir.Key, ir.Description)
	}
	b.WriteString("\nRespond with a single JSON object and nothing else:\n")
	b.WriteString(`{"confirmed": true|false, "suggestedIntent": "<INTENT or empty>", "reason": "<one sentence>"}`)
	return b.String()
}

// =============================================================================
// Reply Parsing
// =============================================================================

// parseJSONReply extracts and unmarshals the outermost JSON object from
// a model reply, tolerating markdown code fences and surrounding prose.
func parseJSONReply(reply string, v any) error {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON object found in reply")
	}
	return json.Unmarshal([]byte(cleaned[start:end+1]), v)
}
