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
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

// funcClient adapts a function to LLMClient.
type funcClient func(ctx context.Context, prompt string) (string, error)

func (f funcClient) Generate(ctx context.Context, prompt string, _ GenerationParams) (string, error) {
	return f(ctx, prompt)
}

func fastPolicy(inner LLMClient, opts ...PolicyOption) *PolicyClient {
	base := []PolicyOption{
		WithBackoff(time.Millisecond),
		WithRateLimit(0),
		WithProvider("test"),
	}
	return NewPolicyClient(inner, append(base, opts...)...)
}

func TestPolicyClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	inner := funcClient(func(ctx context.Context, prompt string) (string, error) {
		if calls.Add(1) < 3 {
			return "", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}
		}
		return "ok", nil
	})

	got, err := fastPolicy(inner, WithMaxRetries(2)).Generate(context.Background(), "p", GenerationParams{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Generate() = %q, want %q", got, "ok")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestPolicyClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	inner := funcClient(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "", fmt.Errorf("backend: %w", ErrEmptyResponse)
	})

	_, err := fastPolicy(inner, WithMaxRetries(1)).Generate(context.Background(), "p", GenerationParams{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("error = %v, want ErrEmptyResponse", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestPolicyClient_PermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	permanent := &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "Incorrect API key"}
	inner := funcClient(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "", permanent
	})

	_, err := fastPolicy(inner, WithMaxRetries(3)).Generate(context.Background(), "p", GenerationParams{})
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *openai.APIError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPolicyClient_PerCallTimeout(t *testing.T) {
	var calls atomic.Int32
	inner := funcClient(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		<-ctx.Done()
		return "", ctx.Err()
	})

	p := fastPolicy(inner, WithCallTimeout(10*time.Millisecond), WithMaxRetries(1))
	_, err := p.Generate(context.Background(), "p", GenerationParams{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (timeout is transient)", calls.Load())
	}
}

func TestPolicyClient_CallerCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	inner := funcClient(func(c context.Context, prompt string) (string, error) {
		calls.Add(1)
		cancel()
		return "", context.DeadlineExceeded
	})

	_, err := fastPolicy(inner, WithMaxRetries(5)).Generate(ctx, "p", GenerationParams{})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"empty response", ErrEmptyResponse, true},
		{"429", &openai.APIError{HTTPStatusCode: 429}, true},
		{"503", &openai.RequestError{HTTPStatusCode: 503}, true},
		{"400", &openai.APIError{HTTPStatusCode: 400}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient(MockResponse{Text: "one"}, MockResponse{Err: errors.New("two")})

	if got, err := m.Generate(context.Background(), "a", GenerationParams{}); err != nil || got != "one" {
		t.Errorf("first = %q, %v", got, err)
	}
	if _, err := m.Generate(context.Background(), "b", GenerationParams{}); err == nil || err.Error() != "two" {
		t.Errorf("second err = %v", err)
	}
	if _, err := m.Generate(context.Background(), "c", GenerationParams{}); !errors.Is(err, ErrNoMockResponse) {
		t.Errorf("third err = %v, want ErrNoMockResponse", err)
	}
	if got := m.Prompts(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Prompts() = %v", got)
	}
}
