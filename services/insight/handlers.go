// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insight

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pitcrewai/meetinsight/services/insight/contract"
	"github.com/pitcrewai/meetinsight/services/insight/followup"
)

// =============================================================================
// Wire Types
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ThreadMessage is one prior conversation entry, oldest first.
type ThreadMessage struct {
	Text  string `json:"text"`
	IsBot bool   `json:"isBot"`
}

// ClassifyRequest is the body of POST /v1/insight/classify.
type ClassifyRequest struct {
	Message string          `json:"message" binding:"required"`
	Thread  []ThreadMessage `json:"thread"`
}

// MeetingRefRequest is the body of POST /v1/insight/meetingref.
type MeetingRefRequest struct {
	Message string `json:"message" binding:"required"`
}

// MeetingRefResponse mirrors meetingref.Result on the wire.
type MeetingRefResponse struct {
	HasMeetingRef bool   `json:"hasMeetingRef"`
	RegexResult   bool   `json:"regexResult"`
	LLMCalled     bool   `json:"llmCalled"`
	LLMResult     *bool  `json:"llmResult"`
	LLMLatencyMs  *int64 `json:"llmLatencyMs"`
}

// FollowUpRequest is the body of POST /v1/insight/followup.
type FollowUpRequest struct {
	Message string          `json:"message" binding:"required"`
	Thread  []ThreadMessage `json:"thread"`
}

// FollowUpResponse reports a detection, or isFollowUp=false.
type FollowUpResponse struct {
	IsFollowUp         bool    `json:"isFollowUp"`
	InferredIntentKey  string  `json:"inferredIntentKey,omitempty"`
	Reason             string  `json:"reason,omitempty"`
	PreviousBotSnippet string  `json:"previousBotSnippet,omitempty"`
	Confidence         float64 `json:"confidence,omitempty"`
}

// CoverageRequest is the body of POST /v1/insight/contract/coverage.
type CoverageRequest struct {
	Intent          string `json:"intent" binding:"required"`
	TotalMeetings   int    `json:"totalMeetings"`
	UniqueCompanies int    `json:"uniqueCompanies"`
}

// CoverageResponse carries the resolved contract and disclaimer.
type CoverageResponse struct {
	Contract      string `json:"contract"`
	Header        string `json:"header"`
	Qualification string `json:"qualification"`
}

// HealthResponse is the body of GET /v1/insight/health.
type HealthResponse struct {
	Status       string `json:"status"`
	RulesVersion string `json:"rulesVersion"`
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers binds the Service to Gin.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handler set.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// getOrCreateRequestID returns the X-Request-ID header or a fresh UUID.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func toThread(msgs []ThreadMessage) []followup.Message {
	if len(msgs) == 0 {
		return nil
	}
	thread := make([]followup.Message, len(msgs))
	for i, m := range msgs {
		thread[i] = followup.Message{Text: m.Text, IsBot: m.IsBot}
	}
	return thread
}

// HandleClassify handles POST /v1/insight/classify.
//
// Description:
//
//	Runs the full classification pipeline over the message and optional
//	thread. Always returns 200 with a complete result; the pipeline
//	degrades internally.
//
// Response:
//
//	200 OK: classify.Result
//	400 Bad Request: Missing message
func (h *Handlers) HandleClassify(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleClassify")

	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	result := h.service.Classify(c.Request.Context(), req.Message, toThread(req.Thread))
	logger.Info("classified",
		slog.String("intent", string(result.Intent)),
		slog.String("method", result.DetectionMethod.String()),
	)
	c.JSON(http.StatusOK, result)
}

// HandleMeetingRef handles POST /v1/insight/meetingref.
//
// Response:
//
//	200 OK: MeetingRefResponse
//	400 Bad Request: Missing message
func (h *Handlers) HandleMeetingRef(c *gin.Context) {
	var req MeetingRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	r := h.service.ResolveMeetingRef(c.Request.Context(), req.Message)
	c.JSON(http.StatusOK, MeetingRefResponse{
		HasMeetingRef: r.HasMeetingRef,
		RegexResult:   r.RegexResult,
		LLMCalled:     r.LLMCalled,
		LLMResult:     r.LLMResult,
		LLMLatencyMs:  r.LLMLatencyMs,
	})
}

// HandleFollowUp handles POST /v1/insight/followup.
//
// Response:
//
//	200 OK: FollowUpResponse (isFollowUp=false when nothing matched)
//	400 Bad Request: Missing message
func (h *Handlers) HandleFollowUp(c *gin.Context) {
	var req FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	fu := h.service.DetectFollowUp(req.Message, toThread(req.Thread))
	if fu == nil {
		c.JSON(http.StatusOK, FollowUpResponse{IsFollowUp: false})
		return
	}
	c.JSON(http.StatusOK, FollowUpResponse{
		IsFollowUp:         true,
		InferredIntentKey:  fu.InferredIntentKey,
		Reason:             fu.Reason,
		PreviousBotSnippet: fu.PreviousBotSnippet,
		Confidence:         fu.Confidence,
	})
}

// HandleCoverage handles POST /v1/insight/contract/coverage.
//
// Response:
//
//	200 OK: CoverageResponse
//	400 Bad Request: Missing intent or negative counts
func (h *Handlers) HandleCoverage(c *gin.Context) {
	var req CoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "intent is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}
	if req.TotalMeetings < 0 || req.UniqueCompanies < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "counts must be non-negative",
			Code:  "INVALID_PARAMETER",
		})
		return
	}

	contractTag, header, qualification := h.service.ContractFor(req.Intent, contract.CoverageSummary{
		TotalMeetings:   req.TotalMeetings,
		UniqueCompanies: req.UniqueCompanies,
	})
	c.JSON(http.StatusOK, CoverageResponse{
		Contract:      string(contractTag),
		Header:        header,
		Qualification: qualification,
	})
}

// HandleHealth handles GET /v1/insight/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "ok",
		RulesVersion: h.service.RulesVersion(),
	})
}
