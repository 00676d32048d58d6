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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/awnumar/memguard"
	"github.com/sashabaranov/go-openai"
)

// newMockOpenAIServer serves /v1/chat/completions with handler.
func newMockOpenAIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestOpenAIClient(t *testing.T, baseURL string) *OpenAIClient {
	t.Helper()
	client, err := NewOpenAIClient(OpenAIConfig{
		Model:   "test-model",
		BaseURL: baseURL + "/v1",
		APIKey:  memguard.NewEnclave([]byte("sk-test")),
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	return client
}

func TestOpenAIClient_Generate(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	var gotAuth string
	server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[{\"intent\":\"unsure\"}]"},"finish_reason":"stop"}]}`))
	})

	temp := float32(0.1)
	got, err := newTestOpenAIClient(t, server.URL).Generate(context.Background(), "hello", GenerationParams{Temperature: &temp})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `[{"intent":"unsure"}]` {
		t.Errorf("Generate() = %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "test-model" || len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "hello" {
		t.Errorf("unexpected request: %+v", gotReq)
	}
	if gotReq.Temperature != temp {
		t.Errorf("Temperature = %v, want %v", gotReq.Temperature, temp)
	}
}

func TestOpenAIClient_ErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
		empty     bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, true, false},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`, false, false},
		{"no choices", http.StatusOK, `{"id":"1","object":"chat.completion","choices":[]}`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newMockOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := newTestOpenAIClient(t, server.URL).Generate(context.Background(), "x", GenerationParams{})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsTransient(err); got != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, got, tt.transient)
			}
			if got := errors.Is(err, ErrEmptyResponse); got != tt.empty {
				t.Errorf("errors.Is(ErrEmptyResponse) = %v, want %v", got, tt.empty)
			}
		})
	}
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("error = %v, want ErrMissingAPIKey", err)
	}
}
