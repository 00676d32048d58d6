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
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Policy defaults.
const (
	DefaultCallTimeout       = 120 * time.Second
	DefaultMaxRetries        = 2
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultRequestsPerSecond = 2.0
)

// PolicyOption configures a PolicyClient.
type PolicyOption func(*PolicyClient)

// WithCallTimeout bounds each individual attempt. Zero disables it.
func WithCallTimeout(d time.Duration) PolicyOption {
	return func(p *PolicyClient) {
		p.timeout = d
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) PolicyOption {
	return func(p *PolicyClient) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithBackoff sets the delay before the first retry. It doubles per retry.
func WithBackoff(d time.Duration) PolicyOption {
	return func(p *PolicyClient) {
		if d > 0 {
			p.backoff = d
		}
	}
}

// WithRateLimit allows rps calls per second with a burst of one.
// A non-positive rps removes the limit.
func WithRateLimit(rps float64) PolicyOption {
	return func(p *PolicyClient) {
		if rps <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithProvider sets the provider label used in metrics and logs.
func WithProvider(name string) PolicyOption {
	return func(p *PolicyClient) {
		p.provider = name
	}
}

// PolicyClient wraps an LLMClient with timeout, retry and rate limiting.
//
// # Description
//
// Every attempt waits on the rate limiter, then runs under its own
// timeout derived from the caller's context. Transient failures (attempt
// timeouts, HTTP 429 and 5xx, network errors, empty responses) are retried
// with exponential backoff up to the retry limit. Other failures, and
// cancellation of the caller's context, return immediately.
//
// # Thread Safety
//
// Safe for concurrent use if the wrapped client is.
type PolicyClient struct {
	inner      LLMClient
	provider   string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewPolicyClient wraps inner with the default policy.
func NewPolicyClient(inner LLMClient, opts ...PolicyOption) *PolicyClient {
	p := &PolicyClient{
		inner:      inner,
		provider:   "unknown",
		timeout:    DefaultCallTimeout,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultInitialBackoff,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		logger:     slog.Default().With(slog.String("component", "llm")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate implements the LLMClient interface
func (p *PolicyClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "PolicyClient.Generate")
	defer span.End()

	start := time.Now()
	delay := p.backoff

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			llmRetriesTotal.WithLabelValues(p.provider).Inc()
			p.logger.Warn("retrying llm call",
				slog.String("provider", p.provider),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.String("error", lastErr.Error()))
			if err := sleep(ctx, delay); err != nil {
				return "", p.fail(start, err)
			}
			delay *= 2
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return "", p.fail(start, fmt.Errorf("rate limiter: %w", err))
		}

		resp, err := p.attempt(ctx, prompt, params)
		if err == nil {
			llmCallsTotal.WithLabelValues(p.provider, "ok").Inc()
			llmDuration.WithLabelValues(p.provider).Observe(time.Since(start).Seconds())
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			break
		}
	}
	return "", p.fail(start, lastErr)
}

func (p *PolicyClient) attempt(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.inner.Generate(ctx, prompt, params)
}

func (p *PolicyClient) fail(start time.Time, err error) error {
	llmCallsTotal.WithLabelValues(p.provider, "error").Inc()
	llmDuration.WithLabelValues(p.provider).Observe(time.Since(start).Seconds())
	p.logger.Error("llm call failed",
		slog.String("provider", p.provider),
		slog.String("error", err.Error()))
	return fmt.Errorf("llm %s: %w", p.provider, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
