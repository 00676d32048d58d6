// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"sync"
)

// MockResponse is one queued MockClient answer.
type MockResponse struct {
	Text string
	Err  error
}

// MockClient answers from a FIFO queue and records every prompt.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	prompts   []string
}

// NewMockClient creates a MockClient with the given queue.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

// Enqueue appends responses to the queue.
func (m *MockClient) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// Generate implements the LLMClient interface
func (m *MockClient) Generate(ctx context.Context, prompt string, _ GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if len(m.responses) == 0 {
		return "", ErrNoMockResponse
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next.Text, next.Err
}

// Prompts returns a copy of the prompts received so far.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
