// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package approval decides whether a previewed plan is applied, revised
// or aborted.
//
// A Policy wraps the configured approval mode around an Approver that
// actually asks. Plans holding destructive steps are always asked about,
// whatever the mode.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianModeler/services/modeler/preview"
)

// Mode is the configured approval mode.
type Mode string

const (
	// ModeSuggest always asks.
	ModeSuggest Mode = "suggest"

	// ModeAuto applies without asking unless the plan is destructive.
	ModeAuto Mode = "auto"
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown approval mode")

// ParseMode parses "suggest" or "auto". Empty means suggest.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSuggest:
		return ModeSuggest, nil
	case ModeAuto:
		return ModeAuto, nil
	default:
		return ModeSuggest, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Action is the outcome of an approval.
type Action string

const (
	ActionApply  Action = "apply"
	ActionRevise Action = "revise"
	ActionAbort  Action = "abort"
)

// Request is what an Approver decides on.
type Request struct {
	Summary *preview.Summary

	// Destructive is true when the plan deletes files or folders.
	Destructive bool

	// Revision is the number of revisions already made in this cycle.
	Revision int
}

// Decision is an Approver's answer. Feedback is set for ActionRevise.
type Decision struct {
	Action   Action
	Feedback string
}

// Approver asks for a decision.
type Approver interface {
	Approve(ctx context.Context, req Request) (Decision, error)
}

// Source labels for metrics and logs.
const (
	sourceNoChanges      = "no_changes"
	sourceAuto           = "auto"
	sourceNonInteractive = "non_interactive"
	sourceApprover       = "approver"
)

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithLogger sets the policy logger.
func WithLogger(logger *slog.Logger) PolicyOption {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Policy applies the approval mode before delegating to an Approver.
//
// # Description
//
// The rules, in order:
//
//  1. A preview with no changes and no deletions aborts without asking.
//  2. ModeAuto applies plans without destructive steps.
//  3. Without an Approver (non-interactive use) the plan is aborted.
//  4. Otherwise the Approver decides.
//
// # Thread Safety
//
// SetMode may be called while Approve runs.
type Policy struct {
	mu     sync.RWMutex
	mode   Mode
	inner  Approver
	logger *slog.Logger
}

// NewPolicy creates a Policy. inner may be nil.
func NewPolicy(mode Mode, inner Approver, opts ...PolicyOption) *Policy {
	p := &Policy{
		mode:   mode,
		inner:  inner,
		logger: slog.Default().With(slog.String("component", "approval")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode returns the current mode.
func (p *Policy) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// SetMode switches the mode, e.g. after a config reload.
func (p *Policy) SetMode(mode Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != mode {
		p.logger.Info("approval mode changed", slog.String("from", string(p.mode)), slog.String("to", string(mode)))
	}
	p.mode = mode
}

// Approve implements Approver.
func (p *Policy) Approve(ctx context.Context, req Request) (Decision, error) {
	mode := p.Mode()

	if req.Summary == nil || !req.Summary.HasChanges() {
		return p.decided(Decision{Action: ActionAbort}, sourceNoChanges), nil
	}
	if mode == ModeAuto && !req.Destructive {
		return p.decided(Decision{Action: ActionApply}, sourceAuto), nil
	}
	if p.inner == nil {
		p.logger.Warn("no interactive approver available, aborting",
			slog.Bool("destructive", req.Destructive),
			slog.String("mode", string(mode)))
		return p.decided(Decision{Action: ActionAbort}, sourceNonInteractive), nil
	}

	d, err := p.inner.Approve(ctx, req)
	if err != nil {
		approvalErrorsTotal.Inc()
		return Decision{}, fmt.Errorf("approval: %w", err)
	}
	if d.Action == "" {
		d.Action = ActionAbort
	}
	return p.decided(d, sourceApprover), nil
}

func (p *Policy) decided(d Decision, source string) Decision {
	approvalDecisionsTotal.WithLabelValues(string(d.Action), source).Inc()
	p.logger.Debug("approval decided",
		slog.String("action", string(d.Action)),
		slog.String("source", source))
	return d
}

// Scripted returns queued decisions in order, then aborts. It records
// every request.
//
// # Thread Safety
//
// Safe for concurrent use.
type Scripted struct {
	mu        sync.Mutex
	decisions []Decision
	requests  []Request
}

// NewScripted creates a Scripted approver.
func NewScripted(decisions ...Decision) *Scripted {
	return &Scripted{decisions: decisions}
}

// Approve implements Approver.
func (s *Scripted) Approve(ctx context.Context, req Request) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.decisions) == 0 {
		return Decision{Action: ActionAbort}, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

// Requests returns a copy of the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
