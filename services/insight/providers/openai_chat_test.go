// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChat_SendsMessagesAndParsesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		msgs, _ := req["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("sent %d messages, want 2", len(msgs))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "YES"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClientWithConfig("test-key", "test-model", srv.URL)
	got, err := c.Chat(context.Background(), []Message{
		{Role: "system", Content: "classify"},
		{Role: "user", Content: "last meeting?"},
	}, ChatOptions{Temperature: 0, MaxTokens: 4})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "YES" {
		t.Errorf("reply = %q", got)
	}
}

func TestChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key", "type": "auth"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClientWithConfig("bad-key", "test-model", srv.URL)
	if _, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, ChatOptions{}); err == nil {
		t.Error("expected error for API failure")
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClientWithConfig("test-key", "test-model", srv.URL)
	if _, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, ChatOptions{}); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestChat_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"content": "late"}}]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewOpenAIChatClientWithConfig("test-key", "test-model", srv.URL)
	if _, err := c.Chat(ctx, []Message{{Role: "user", Content: "q"}}, ChatOptions{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
