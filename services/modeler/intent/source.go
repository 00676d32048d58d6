// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/llm"
)

// DistillRequest is the input to Source.Distill.
type DistillRequest struct {
	UserInput string
	Summary   string

	// Recent holds the latest conversation turns as "role: content".
	Recent []string
}

// ReviseRequest is the input to Source.Revise.
//
// Prior holds the revisions submitted before this one, oldest first.
// Current is the revision being submitted now.
type ReviseRequest struct {
	UserInput string
	Summary   string
	Prior     []RevisionEntry
	Current   RevisionEntry
}

// Source produces intents from natural language.
type Source interface {
	// Distill extracts the intents of a fresh request.
	Distill(ctx context.Context, req DistillRequest) ([]Intent, error)

	// Revise re-derives intents from revision feedback.
	Revise(ctx context.Context, req ReviseRequest) ([]Intent, error)
}

// SourceOption configures an LLMSource.
type SourceOption func(*LLMSource)

// WithParams sets the generation parameters for every call.
func WithParams(params llm.GenerationParams) SourceOption {
	return func(s *LLMSource) {
		s.params = params
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(s *LLMSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// LLMSource is a Source backed by a language model.
//
// # Description
//
// A client failure is returned as an error. A response that holds no
// decodable intent JSON is not an error: it yields a single "unsure"
// intent so the workflow asks the user to rephrase.
//
// # Thread Safety
//
// Safe for concurrent use if the client is.
type LLMSource struct {
	client llm.LLMClient
	params llm.GenerationParams
	logger *slog.Logger
}

// NewLLMSource creates an LLMSource.
func NewLLMSource(client llm.LLMClient, opts ...SourceOption) *LLMSource {
	s := &LLMSource{
		client: client,
		logger: slog.Default().With(slog.String("component", "intent")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Distill implements Source.
func (s *LLMSource) Distill(ctx context.Context, req DistillRequest) ([]Intent, error) {
	if strings.TrimSpace(req.UserInput) == "" {
		return nil, ErrEmptyInput
	}

	prompt := DistillPrompt(req)
	s.logger.Debug("distilling intent", slog.Int("prompt_chars", len(prompt)))

	resp, err := s.client.Generate(ctx, prompt, s.params)
	if err != nil {
		return nil, fmt.Errorf("distilling intent: %w", err)
	}
	return s.decode(resp), nil
}

// Revise implements Source.
func (s *LLMSource) Revise(ctx context.Context, req ReviseRequest) ([]Intent, error) {
	prompt := RevisePrompt(req)
	s.logger.Debug("revising intent",
		slog.Int("prior_revisions", len(req.Prior)),
		slog.Int("prompt_chars", len(prompt)))

	resp, err := s.client.Generate(ctx, prompt, s.params)
	if err != nil {
		return nil, fmt.Errorf("revising intent: %w", err)
	}
	return s.decode(resp), nil
}

func (s *LLMSource) decode(resp string) []Intent {
	intents, err := ParseIntents(resp)
	if err != nil {
		s.logger.Warn("could not parse intents from model response", slog.String("error", err.Error()))
		return []Intent{{Kind: Unsure}}
	}
	if len(intents) == 0 {
		return []Intent{{Kind: Unsure}}
	}
	s.logger.Debug("intents distilled", slog.Int("count", len(intents)))
	return intents
}
