// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package redact

import (
	"context"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianModeler/services/llm"
)

// findingsTotal counts prompt findings by classification, pattern and
// whether the match was removed.
var findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modeler",
	Subsystem: "redact",
	Name:      "prompt_findings_total",
	Help:      "Sensitive content found in outgoing prompts",
}, []string{"classification", "pattern", "redacted"})

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client redacts prompts before passing them to the wrapped client.
type Client struct {
	inner  llm.LLMClient
	guard  *Guard
	logger *slog.Logger
}

// NewClient wraps inner with guard.
func NewClient(inner llm.LLMClient, guard *Guard, opts ...ClientOption) *Client {
	c := &Client{
		inner:  inner,
		guard:  guard,
		logger: slog.Default().With(slog.String("component", "redact")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements llm.LLMClient.
func (c *Client) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	clean, findings := c.guard.Redact(prompt)
	if len(findings) > 0 {
		var ids []string
		redacted := 0
		for _, f := range findings {
			findingsTotal.WithLabelValues(f.Classification, f.PatternID, boolLabel(f.Redacted)).Inc()
			if f.Redacted {
				redacted++
			}
			if !slices.Contains(ids, f.PatternID) {
				ids = append(ids, f.PatternID)
			}
		}
		c.logger.Warn("sensitive content in prompt",
			slog.Int("findings", len(findings)),
			slog.Int("redacted", redacted),
			slog.Any("patterns", ids))
	}
	return c.inner.Generate(ctx, clean, params)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
