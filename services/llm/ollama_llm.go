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
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("modeler.llm")

// Ollama defaults.
const (
	DefaultOllamaModel     = "gpt-oss"
	DefaultOllamaServerURL = "http://localhost:11434"
)

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	Model     string
	ServerURL string
}

type OllamaClient struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaClient builds a client for a local Ollama server.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	model := cfg.Model
	if model == "" {
		slog.Warn("Ollama model not set, using default", "model", DefaultOllamaModel)
		model = DefaultOllamaModel
	}
	serverURL := strings.TrimSuffix(cfg.ServerURL, "/")
	if serverURL == "" {
		serverURL = DefaultOllamaServerURL
	}

	backend, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	slog.Info("Initializing Ollama client", "server_url", serverURL, "model", model)
	return &OllamaClient{llm: backend, model: model}, nil
}

// Generate implements the LLMClient interface
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	resp, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, ollamaOptions(params)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return "", fmt.Errorf("Ollama call failed: %w", err)
	}
	if strings.TrimSpace(resp) == "" {
		span.SetStatus(codes.Error, "empty response")
		return "", fmt.Errorf("Ollama: %w", ErrEmptyResponse)
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(resp)))
	return resp, nil
}

// ollamaOptions maps params to call options, with the low-temperature
// defaults used for structured output.
func ollamaOptions(params GenerationParams) []llms.CallOption {
	temperature := 0.2
	if params.Temperature != nil {
		temperature = float64(*params.Temperature)
	}
	topK := 20
	if params.TopK != nil {
		topK = *params.TopK
	}
	topP := 0.9
	if params.TopP != nil {
		topP = float64(*params.TopP)
	}
	maxTokens := 8192
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	opts := []llms.CallOption{
		llms.WithTemperature(temperature),
		llms.WithTopK(topK),
		llms.WithTopP(topP),
		llms.WithMaxTokens(maxTokens),
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}
	return opts
}
