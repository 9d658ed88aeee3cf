// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pitcrewai/meetinsight/services/insight/config"
	"github.com/pitcrewai/meetinsight/services/insight/entity"
	"github.com/pitcrewai/meetinsight/services/insight/followup"
	"github.com/pitcrewai/meetinsight/services/insight/patterns"
)

// =============================================================================
// OTel Tracer
// =============================================================================

var routerTracer = otel.Tracer("insight.classify.router")

// =============================================================================
// Confidence Policy
// =============================================================================

const (
	// patternConfidence is reported for deterministic rule hits.
	patternConfidence = 0.95

	// entityConfidence is reported for known-company matches.
	entityConfidence = 0.8

	// llmConfidence is reported for semantic interpretation results.
	llmConfidence = 0.7

	// defaultConfidence is reported for the fall-through default.
	defaultConfidence = 0.5

	// validationThreshold triggers the second-opinion call when
	// validation is enabled and a result lands below it.
	validationThreshold = 0.75
)

// =============================================================================
// Router
// =============================================================================

// CompanySource supplies the known-company snapshot per request.
type CompanySource interface {
	Companies(ctx context.Context) []entity.Company
}

// Router is the intent classification pipeline.
//
// Description:
//
//	Stages run cheapest first: deterministic patterns, follow-up
//	detection against the thread, known-entity matching, then the LLM
//	semantic fallback. Each stage either decides or passes. Failures in
//	the semantic stage degrade to the GENERAL_HELP default; Classify
//	never returns an error.
//
// Thread Safety: Safe for concurrent use after construction. Hot
// reload swaps whole Routers; a Router itself is never mutated.
type Router struct {
	library     *patterns.Library
	detector    *followup.Detector
	companies   CompanySource
	interpreter *Interpreter // nil disables the semantic stage

	intentKeys map[string]bool
	validate   bool
	logger     *slog.Logger
}

// NewRouter assembles the pipeline.
//
// Inputs:
//
//	rs - The validated rule set.
//	library - Compiled pattern library. Must not be nil.
//	detector - Follow-up detector. Must not be nil.
//	companies - Known-company source. Must not be nil.
//	interpreter - Semantic stage. Nil disables it; classification then
//	              falls through from entity matching to the default.
//	validateLowConfidence - Enables the second-opinion call for results
//	                        below the validation threshold.
//	logger - Logger instance. May be nil.
func NewRouter(
	rs *config.RuleSet,
	library *patterns.Library,
	detector *followup.Detector,
	companies CompanySource,
	interpreter *Interpreter,
	validateLowConfidence bool,
	logger *slog.Logger,
) *Router {
	if library == nil || detector == nil || companies == nil {
		panic("NewRouter: library, detector, and companies must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	keys := make(map[string]bool, len(rs.Intents))
	for _, ir := range rs.Intents {
		keys[ir.Key] = true
	}
	return &Router{
		library:     library,
		detector:    detector,
		companies:   companies,
		interpreter: interpreter,
		intentKeys:  keys,
		validate:    validateLowConfidence,
		logger:      logger,
	}
}

// Classify resolves a user message to an intent.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	message - The raw user message.
//	thread - Prior conversation, oldest first. May be nil.
//
// Outputs:
//
//	Result - Always a complete result; the pipeline degrades internally
//	         and never errors.
//
// Thread Safety: Safe for concurrent use.
func (r *Router) Classify(ctx context.Context, message string, thread []followup.Message) Result {
	ctx, span := routerTracer.Start(ctx, "classify.Classify")
	defer span.End()

	result := r.classify(ctx, message, thread)

	span.SetAttributes(
		attribute.String("intent", string(result.Intent)),
		attribute.String("detection_method", result.DetectionMethod.String()),
		attribute.Float64("confidence", result.Confidence),
	)
	classifyTotal.WithLabelValues(result.DetectionMethod.String(), string(result.Intent)).Inc()
	return result
}

func (r *Router) classify(ctx context.Context, message string, thread []followup.Message) Result {
	// Stage 1: deterministic patterns. No network.
	if reason, ok := r.library.MatchRefusal(message); ok {
		return Result{
			Intent:          IntentRefuse,
			Confidence:      patternConfidence,
			DetectionMethod: DetectionPattern,
			Reason:          reason,
		}
	}
	if r.library.MatchGreeting(message) {
		return Result{
			Intent:          IntentGeneralHelp,
			Confidence:      patternConfidence,
			DetectionMethod: DetectionPattern,
			Reason:          "greeting",
		}
	}
	if mi, ok := r.library.MatchMultiIntent(message); ok {
		return Result{
			Intent:          IntentClarify,
			Confidence:      mi.Confidence,
			DetectionMethod: DetectionPattern,
			NeedsSplit:      true,
			SplitOptions:    mi.SplitOptions,
			Reason:          "multi-intent conjunction: " + mi.Conjunction,
		}
	}

	// Stage 2: follow-up refinement against the thread. No network.
	if fu := r.detector.Detect(message, thread); fu != nil {
		return Result{
			Intent:          r.intentFromKey(fu.InferredIntentKey),
			Confidence:      fu.Confidence,
			DetectionMethod: DetectionPattern,
			Reason:          "follow-up: " + fu.Reason,
		}
	}

	// Stage 3: known-entity matching. No network.
	if match := entity.ExtractCompany(message, r.companies.Companies(ctx)); match != nil {
		intent := IntentSingleMeeting
		if r.library.HasMultiSignal(message) {
			intent = IntentMultiMeeting
		}
		return Result{
			Intent:          intent,
			Confidence:      entityConfidence,
			DetectionMethod: DetectionEntity,
			Reason:          "known company: " + match.CompanyName,
			MatchedCompany:  match.CompanyName,
		}
	}

	// Stage 4: semantic interpretation.
	if r.interpreter != nil {
		if interp, err := r.interpreter.Interpret(ctx, message); err != nil {
			r.logger.Warn("semantic interpretation failed, using default intent",
				slog.String("error", err.Error()),
			)
			llmFailureTotal.WithLabelValues("interpret").Inc()
		} else {
			result := Result{
				Intent:          Intent(interp.Intent),
				Confidence:      llmConfidence,
				DetectionMethod: DetectionLLMInterpretation,
				Reason:          interp.Summary,
			}
			return r.maybeValidate(ctx, message, result)
		}
	}

	// Stage 5: fall-through default.
	return Result{
		Intent:          IntentGeneralHelp,
		Confidence:      defaultConfidence,
		DetectionMethod: DetectionDefault,
		Reason:          "no stage matched",
	}
}

// maybeValidate runs the second-opinion call for low-confidence results
// when enabled. A failed or unconfirmed-without-suggestion validation
// keeps the original result.
func (r *Router) maybeValidate(ctx context.Context, message string, result Result) Result {
	if !r.validate || r.interpreter == nil || result.Confidence >= validationThreshold {
		return result
	}
	v, err := r.interpreter.Validate(ctx, message, result.Intent)
	if err != nil {
		r.logger.Warn("intent validation failed, keeping original intent",
			slog.String("error", err.Error()),
			slog.String("intent", string(result.Intent)),
		)
		llmFailureTotal.WithLabelValues("validate").Inc()
		return result
	}
	if v.Confirmed || v.SuggestedIntent == "" {
		return result
	}
	r.logger.Info("intent corrected by validation",
		slog.String("original", string(result.Intent)),
		slog.String("suggested", v.SuggestedIntent),
		slog.String("reason", v.Reason),
	)
	result.Intent = Intent(v.SuggestedIntent)
	result.Reason = v.Reason
	return result
}

// intentFromKey maps a rule-table key to an Intent, guarding against
// keys that validation somehow let through.
func (r *Router) intentFromKey(key string) Intent {
	if r.intentKeys[key] {
		return Intent(key)
	}
	return IntentGeneralHelp
}
