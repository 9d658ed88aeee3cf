// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import "fmt"

// Error codes for classification failures.
const (
	ErrCodeParseError   = "PARSE_ERROR"
	ErrCodeLLMError     = "LLM_ERROR"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeInvalidInput = "INVALID_INPUT"
)

// RouterError is a classification failure with a stable code and a
// retryability hint. The pipeline itself degrades instead of surfacing
// these; they exist for the semantic stages, which callers may retry.
type RouterError struct {
	Code      string
	Message   string
	Retryable bool
}

// NewRouterError creates a RouterError.
func NewRouterError(code, message string, retryable bool) *RouterError {
	return &RouterError{Code: code, Message: message, Retryable: retryable}
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
