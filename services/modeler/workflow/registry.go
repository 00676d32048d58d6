// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"context"
	"sort"
	"sync"
)

// Phase executes one state.
type Phase interface {
	// Name identifies the phase in logs and spans.
	Name() string

	// Execute updates the cycle and returns the next state. A returned
	// error sends the cycle to HandleError.
	Execute(ctx context.Context, c *Cycle) (State, error)
}

// PhaseFunc adapts a function to Phase.
type PhaseFunc struct {
	PhaseName string
	Fn        func(ctx context.Context, c *Cycle) (State, error)
}

// Name implements Phase.
func (p PhaseFunc) Name() string { return p.PhaseName }

// Execute implements Phase.
func (p PhaseFunc) Execute(ctx context.Context, c *Cycle) (State, error) {
	return p.Fn(ctx, c)
}

// PhaseRegistry maps states to phases.
//
// # Thread Safety
//
// Safe for concurrent use.
type PhaseRegistry struct {
	mu     sync.RWMutex
	phases map[State]Phase
}

// NewPhaseRegistry creates an empty registry.
func NewPhaseRegistry() *PhaseRegistry {
	return &PhaseRegistry{phases: make(map[State]Phase)}
}

// Register sets the phase of state, replacing any previous one. A nil
// phase is ignored.
func (r *PhaseRegistry) Register(state State, phase Phase) {
	if phase == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases[state] = phase
}

// Get returns the phase of state.
func (r *PhaseRegistry) Get(state State) (Phase, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.phases[state]
	return p, ok
}

// States returns the registered states, sorted.
func (r *PhaseRegistry) States() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, 0, len(r.phases))
	for s := range r.phases {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of registered phases.
func (r *PhaseRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.phases)
}
