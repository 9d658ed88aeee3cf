// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// =============================================================================
// OpenAI-Compatible Wire Types
// =============================================================================

const defaultChatBaseURL = "https://api.openai.com/v1/chat/completions"

// defaultHTTPTimeout is the transport-level ceiling. Per-call deadlines are
// imposed by callers through ctx and are always shorter.
const defaultHTTPTimeout = 30 * time.Second

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIChatClient implements ChatClient against any OpenAI-compatible
// chat completions endpoint using raw net/http.
//
// Description:
//
//	Works with OpenAI itself and with compatible gateways (Ollama's
//	/v1/chat/completions, vLLM, LiteLLM). No third-party SDK.
//
// Thread Safety: OpenAIChatClient is safe for concurrent use.
type OpenAIChatClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewOpenAIChatClient creates a client from environment variables.
//
// Description:
//
//	Reads OPENAI_API_KEY, OPENAI_MODEL, and OPENAI_BASE_URL. The key may
//	be empty when the base URL points at a local gateway that ignores
//	authentication.
//
// Outputs:
//   - *OpenAIChatClient: The configured client.
//   - error: Non-nil if no key is set and the base URL is the default
//     (the hosted API rejects unauthenticated requests).
func NewOpenAIChatClient() (*OpenAIChatClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultChatBaseURL
	}
	if apiKey == "" && baseURL == defaultChatBaseURL {
		return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing chat client", "model", model, "base_url", baseURL)
	return NewOpenAIChatClientWithConfig(apiKey, model, baseURL), nil
}

// NewOpenAIChatClientWithConfig creates a client with explicit configuration.
//
// Description:
//
//	Bypasses environment variables. Useful for tests with httptest
//	servers or when configuration comes from another source.
//
// Inputs:
//   - apiKey: Bearer token. May be empty for local gateways.
//   - model: Default model name.
//   - baseURL: Full chat completions URL.
//
// Outputs:
//   - *OpenAIChatClient: The configured client.
func NewOpenAIChatClientWithConfig(apiKey, model, baseURL string) *OpenAIChatClient {
	return &OpenAIChatClient{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// Chat implements ChatClient against the chat completions API.
//
// Description:
//
//	Sends a single completion request and returns the first choice's
//	message content. The caller's ctx deadline bounds the whole call.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation messages.
//   - opts: Chat options; opts.Model overrides the default model.
//
// Outputs:
//   - string: The assistant's response text.
//   - error: Non-nil on transport, API, or decode failure.
//
// Thread Safety: Safe for concurrent use.
func (c *OpenAIChatClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	if model == "" {
		return "", fmt.Errorf("openai: model must be set on the client or in ChatOptions")
	}

	wire := make([]chatMessage, len(messages))
	for i, m := range messages {
		wire[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	req := chatRequest{
		Model:       model,
		Messages:    wire,
		Temperature: &opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = &opts.MaxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("openai: decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai: API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
