// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/llm"
)

// NothingToSummarize is shown when compaction has no history to work on.
const NothingToSummarize = "No messages to summarize."

// ErrNothingToSummarize is returned by Summarize for an empty history.
var ErrNothingToSummarize = errors.New("no messages to summarize")

// Summarizer condenses a history into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, history History) (string, error)
}

// LLMSummarizer is a Summarizer backed by a language model.
type LLMSummarizer struct {
	client  llm.LLMClient
	params  llm.GenerationParams
	context func() string
}

// NewLLMSummarizer creates an LLMSummarizer. projectContext, when not nil,
// returns extra project context (metadata, building blocks) for the prompt.
func NewLLMSummarizer(client llm.LLMClient, params llm.GenerationParams, projectContext func() string) *LLMSummarizer {
	return &LLMSummarizer{client: client, params: params, context: projectContext}
}

// Summarize implements Summarizer.
func (l *LLMSummarizer) Summarize(ctx context.Context, history History) (string, error) {
	if len(history) == 0 {
		return "", ErrNothingToSummarize
	}
	extra := ""
	if l.context != nil {
		extra = l.context()
	}
	resp, err := l.client.Generate(ctx, SummaryPrompt(history, extra), l.params)
	if err != nil {
		return "", fmt.Errorf("summarizing session: %w", err)
	}
	summary := strings.TrimSpace(resp)
	if summary == "" {
		return "", fmt.Errorf("summarizing session: %w", llm.ErrEmptyResponse)
	}
	return summary, nil
}

// SummaryPrompt builds the compaction prompt.
func SummaryPrompt(history History, projectContext string) string {
	var b strings.Builder
	b.WriteString("You are summarizing a development session on an ASP.NET Core Domain-Driven Design project built with OpenDDD.NET.\n")
	b.WriteString("Keep the context needed to continue development later without the full history.\n\n")
	b.WriteString("Conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	if projectContext != "" {
		b.WriteString("\nProject:\n")
		b.WriteString(projectContext)
		b.WriteString("\n")
	}
	b.WriteString("\nSummarize the session:\n")
	b.WriteString("- What was the user trying to achieve?\n")
	b.WriteString("- What actions were taken?\n")
	b.WriteString("- What changed in the domain model?\n")
	b.WriteString("- What should the assistant remember to continue?\n\n")
	b.WriteString("Summary:")
	return b.String()
}
