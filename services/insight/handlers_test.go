// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pitcrewai/meetinsight/services/insight/classify"
	"github.com/pitcrewai/meetinsight/services/insight/config"
	"github.com/pitcrewai/meetinsight/services/insight/entity"
)

type fixedCompanies []entity.Company

func (f fixedCompanies) Companies(ctx context.Context) []entity.Company { return f }

func testServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rs, err := config.GetRuleSet(context.Background())
	if err != nil {
		t.Fatalf("loading default rules: %v", err)
	}
	companies := fixedCompanies{{ID: "1", Name: "Ivy Lane (Valvoline)"}}
	svc, err := NewService(DefaultServiceConfig(), rs, nil, companies, nil)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleClassify(t *testing.T) {
	router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/v1/insight/classify",
		`{"message": "What did Ivy Lane think of the proposal?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var got classify.Result
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Intent != classify.IntentSingleMeeting {
		t.Errorf("intent = %s, want SINGLE_MEETING", got.Intent)
	}
	if got.MatchedCompany != "Ivy Lane (Valvoline)" {
		t.Errorf("matched company = %q", got.MatchedCompany)
	}
}

func TestHandleClassify_MissingMessage(t *testing.T) {
	router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/v1/insight/classify", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if er.Code != "MISSING_PARAMETER" {
		t.Errorf("code = %q", er.Code)
	}
}

func TestHandleClassify_WithThread(t *testing.T) {
	router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/v1/insight/classify",
		`{"message": "make it shorter", "thread": [
			{"text": "What did we cover with Acme?", "isBot": false},
			{"text": "In the meeting you discussed pricing.", "isBot": true}
		]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got classify.Result
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Intent != classify.IntentSingleMeeting {
		t.Errorf("intent = %s, want follow-up inference", got.Intent)
	}
}

func TestHandleMeetingRef(t *testing.T) {
	router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/v1/insight/meetingref",
		`{"message": "summarize the last meeting with ACE"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got MeetingRefResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !got.HasMeetingRef || !got.RegexResult || got.LLMCalled {
		t.Errorf("response = %+v, want regex fast path", got)
	}
}

func TestHandleFollowUp_NotAFollowUp(t *testing.T) {
	router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/v1/insight/followup",
		`{"message": "what happened with acme", "thread": []}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got FollowUpResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.IsFollowUp {
		t.Errorf("response = %+v, want isFollowUp=false", got)
	}
}

func TestHandleCoverage(t *testing.T) {
	router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/v1/insight/contract/coverage",
		`{"intent": "MULTI_MEETING", "totalMeetings": 1, "uniqueCompanies": 1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got CoverageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Contract != "CROSS_MEETING_QUESTIONS" {
		t.Errorf("contract = %q", got.Contract)
	}
	if got.Header != "Cross-Meeting Analysis" {
		t.Errorf("header = %q", got.Header)
	}
	if !strings.Contains(got.Qualification, "LIMITED COVERAGE") {
		t.Errorf("qualification = %q, want limited tier", got.Qualification)
	}
}

func TestHandleCoverage_NegativeCounts(t *testing.T) {
	router := testServer(t)

	w := doJSON(t, router, http.MethodPost, "/v1/insight/contract/coverage",
		`{"intent": "MULTI_MEETING", "totalMeetings": -1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	router := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/insight/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Status != "ok" || got.RulesVersion == "" {
		t.Errorf("response = %+v", got)
	}
}
