// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides language model clients behind a single interface.
//
// Backends (OpenAI, Ollama) are wrapped by PolicyClient, which adds a
// per-call timeout, bounded retries for transient failures and a rate
// limit. MockClient serves tests.
package llm

import (
	"context"
	"errors"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

var (
	// ErrEmptyResponse is returned when a backend answers without content.
	ErrEmptyResponse = errors.New("llm returned no content")

	// ErrMissingAPIKey is returned when a backend needs a key and has none.
	ErrMissingAPIKey = errors.New("llm api key not configured")

	// ErrNoMockResponse is returned by MockClient when its queue is empty.
	ErrNoMockResponse = errors.New("mock llm has no queued response")
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)
