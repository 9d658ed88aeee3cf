// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package insight exposes the query decision pipeline as an HTTP
// service: intent classification, meeting reference resolution,
// follow-up detection, and answer contract selection.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pitcrewai/meetinsight/services/insight/classify"
	"github.com/pitcrewai/meetinsight/services/insight/config"
	"github.com/pitcrewai/meetinsight/services/insight/contract"
	"github.com/pitcrewai/meetinsight/services/insight/followup"
	"github.com/pitcrewai/meetinsight/services/insight/meetingref"
	"github.com/pitcrewai/meetinsight/services/insight/patterns"
	"github.com/pitcrewai/meetinsight/services/insight/providers"
)

// =============================================================================
// Service Configuration
// =============================================================================

// ServiceConfig holds the environment-driven service settings.
type ServiceConfig struct {
	// LLMTimeout bounds each model call.
	LLMTimeout time.Duration

	// ValidateLowConfidence enables the second-opinion validation call
	// for low-confidence classifications.
	ValidateLowConfidence bool

	// EntityFreshness is the known-company snapshot cache window.
	EntityFreshness time.Duration
}

// DefaultServiceConfig returns the service defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		LLMTimeout:      8 * time.Second,
		EntityFreshness: 5 * time.Minute,
	}
}

// LoadServiceConfig reads ServiceConfig from the environment, falling
// back to defaults for unset or malformed values.
//
// Environment:
//
//	INSIGHT_LLM_TIMEOUT_MS - Model call bound in milliseconds.
//	INSIGHT_VALIDATE_LOW_CONFIDENCE - "true" enables validation.
//	INSIGHT_ENTITY_FRESHNESS_MS - Snapshot cache window in milliseconds.
func LoadServiceConfig(logger *slog.Logger) ServiceConfig {
	cfg := DefaultServiceConfig()
	if logger == nil {
		logger = slog.Default()
	}

	if v := os.Getenv("INSIGHT_LLM_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.LLMTimeout = time.Duration(ms) * time.Millisecond
		} else {
			logger.Warn("ignoring invalid INSIGHT_LLM_TIMEOUT_MS", slog.String("value", v))
		}
	}
	if v := os.Getenv("INSIGHT_VALIDATE_LOW_CONFIDENCE"); v != "" {
		cfg.ValidateLowConfidence = v == "true" || v == "1"
	}
	if v := os.Getenv("INSIGHT_ENTITY_FRESHNESS_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.EntityFreshness = time.Duration(ms) * time.Millisecond
		} else {
			logger.Warn("ignoring invalid INSIGHT_ENTITY_FRESHNESS_MS", slog.String("value", v))
		}
	}
	return cfg
}

// =============================================================================
// Pipeline
// =============================================================================

// pipeline is one immutable assembly of the classification stages,
// built from a single RuleSet version. Hot reload builds a fresh
// pipeline and swaps the pointer; in-flight requests finish on the old
// one.
type pipeline struct {
	rules      *config.RuleSet
	router     *classify.Router
	meetingRef *meetingref.Resolver
	detector   *followup.Detector
	executor   *contract.Executor
}

// Service owns the active pipeline and its collaborators.
//
// Thread Safety: Safe for concurrent use. The pipeline pointer is the
// only mutable state and is swapped atomically.
type Service struct {
	cfg       ServiceConfig
	chat      providers.ChatClient // nil disables LLM stages
	companies classify.CompanySource
	logger    *slog.Logger

	active atomic.Pointer[pipeline]
}

// NewService builds a Service and its initial pipeline.
//
// Inputs:
//
//	cfg - Service settings.
//	rs - The initial validated rule set.
//	chat - LLM client. Nil disables the semantic stages; the pipeline
//	       then runs deterministic-only.
//	companies - Known-company source. Must not be nil.
//	logger - Logger instance. May be nil.
//
// Outputs:
//
//	*Service - The constructed service.
//	error - Non-nil if the initial pipeline cannot be built.
func NewService(cfg ServiceConfig, rs *config.RuleSet, chat providers.ChatClient, companies classify.CompanySource, logger *slog.Logger) (*Service, error) {
	if rs == nil {
		return nil, fmt.Errorf("NewService: rule set must not be nil")
	}
	if companies == nil {
		return nil, fmt.Errorf("NewService: company source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:       cfg,
		chat:      chat,
		companies: companies,
		logger:    logger,
	}
	p, err := s.buildPipeline(rs)
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}
	s.active.Store(p)
	return s, nil
}

// buildPipeline assembles all stages from one rule set.
func (s *Service) buildPipeline(rs *config.RuleSet) (*pipeline, error) {
	library, err := patterns.NewLibrary(rs, s.logger)
	if err != nil {
		return nil, err
	}
	detector := followup.NewDetector(rs, s.logger)

	var interpreter *classify.Interpreter
	if s.chat != nil {
		interpreter = classify.NewInterpreter(rs, s.chat, s.cfg.LLMTimeout, s.logger)
	}

	return &pipeline{
		rules:      rs,
		router:     classify.NewRouter(rs, library, detector, s.companies, interpreter, s.cfg.ValidateLowConfidence, s.logger),
		meetingRef: meetingref.NewResolver(rs, s.chat, s.cfg.LLMTimeout, s.logger),
		detector:   detector,
		executor:   contract.NewExecutor(rs),
	}, nil
}

// Reload swaps in a pipeline built from a new rule set. Called by the
// rules watcher; rs has already been validated by LoadRuleSet, so a
// build failure keeps the current pipeline.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) Reload(rs *config.RuleSet) {
	p, err := s.buildPipeline(rs)
	if err != nil {
		s.logger.Warn("rule set reload rejected, keeping current pipeline",
			slog.String("version", rs.Version),
			slog.String("error", err.Error()),
		)
		return
	}
	s.active.Store(p)
	s.logger.Info("rule set reloaded",
		slog.String("version", rs.Version),
		slog.Int("intents", len(rs.Intents)),
	)
}

// RulesVersion returns the active rule set's version label.
func (s *Service) RulesVersion() string {
	return s.active.Load().rules.Version
}

// =============================================================================
// Operations
// =============================================================================

// Classify resolves a message to an intent using the active pipeline.
func (s *Service) Classify(ctx context.Context, message string, thread []followup.Message) classify.Result {
	return s.active.Load().router.Classify(ctx, message, thread)
}

// ResolveMeetingRef decides whether a message refers to a specific meeting.
func (s *Service) ResolveMeetingRef(ctx context.Context, message string) meetingref.Result {
	return s.active.Load().meetingRef.Resolve(ctx, message)
}

// DetectFollowUp checks whether a message refines a prior answer.
func (s *Service) DetectFollowUp(message string, thread []followup.Message) *followup.Result {
	return s.active.Load().detector.Detect(message, thread)
}

// ContractFor resolves the contract, header, and coverage disclaimer
// for an intent and evidence summary.
func (s *Service) ContractFor(intentKey string, summary contract.CoverageSummary) (contract.Contract, string, string) {
	p := s.active.Load()
	c := p.executor.ForIntent(intentKey)
	return c, p.executor.Header(c), p.executor.CoverageQualification(summary)
}
