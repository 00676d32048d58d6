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
	"fmt"
	"sort"
)

// StateMachine holds the valid transitions of a cycle.
//
// The graph:
//
//	distill_intent → extract_metadata           : request understood
//	distill_intent → handle_unclear             : nothing actionable
//	distill_intent → handle_unsupported         : unsupported building block
//	extract_metadata → extract_building_blocks  : solution located
//	extract_building_blocks → extract_relevant_sources
//	extract_relevant_sources → plan
//	plan → generate
//	generate → preview
//	preview → apply_changes | abort | revise_intent
//	revise_intent → plan                        : intents revised
//	revise_intent → handle_unclear | handle_unsupported
//	handlers → done
//	* → handle_error                            : any non-terminal state
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type StateMachine struct {
	transitions map[State]map[State]bool
}

// NewStateMachine creates the cycle state machine.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{transitions: make(map[State]map[State]bool)}
	for _, s := range AllStates() {
		sm.transitions[s] = make(map[State]bool)
	}

	sm.add(StateDistillIntent, StateExtractMetadata)
	sm.add(StateDistillIntent, StateHandleUnclear)
	sm.add(StateDistillIntent, StateHandleUnsupported)
	sm.add(StateExtractMetadata, StateExtractBuildingBlocks)
	sm.add(StateExtractBuildingBlocks, StateExtractRelevantSources)
	sm.add(StateExtractRelevantSources, StatePlan)
	sm.add(StatePlan, StateGenerate)
	sm.add(StateGenerate, StatePreview)
	sm.add(StatePreview, StateApplyChanges)
	sm.add(StatePreview, StateAbort)
	sm.add(StatePreview, StateReviseIntent)
	sm.add(StateReviseIntent, StatePlan)
	sm.add(StateReviseIntent, StateHandleUnclear)
	sm.add(StateReviseIntent, StateHandleUnsupported)

	for _, s := range AllStates() {
		if s.IsHandler() {
			sm.add(s, StateDone)
		}
		if !s.IsTerminal() && s != StateHandleError {
			sm.add(s, StateHandleError)
		}
	}
	return sm
}

func (sm *StateMachine) add(from, to State) {
	sm.transitions[from][to] = true
}

// CanTransition reports whether from → to is allowed.
func (sm *StateMachine) CanTransition(from, to State) bool {
	return sm.transitions[from][to]
}

// Transition moves c to the state to, recording it in c.Visited.
//
// # Outputs
//
//   - error: ErrInvalidTransition when from → to is not in the graph.
func (sm *StateMachine) Transition(c *Cycle, to State) error {
	if !sm.CanTransition(c.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, to)
	}
	c.State = to
	c.Visited = append(c.Visited, to)
	return nil
}

// ValidTransitionsFrom returns the sorted targets reachable from from.
func (sm *StateMachine) ValidTransitionsFrom(from State) []State {
	var out []State
	for to, ok := range sm.transitions[from] {
		if ok {
			out = append(out, to)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var transitionReasons = map[[2]State]string{
	{StateDistillIntent, StateExtractMetadata}:                "Request understood",
	{StateDistillIntent, StateHandleUnclear}:                  "No actionable intent",
	{StateDistillIntent, StateHandleUnsupported}:              "Unsupported building block requested",
	{StateExtractMetadata, StateExtractBuildingBlocks}:        "Solution located",
	{StateExtractBuildingBlocks, StateExtractRelevantSources}: "Building blocks classified",
	{StateExtractRelevantSources, StatePlan}:                  "Relevant sources loaded",
	{StatePlan, StateGenerate}:                                "Plan ready",
	{StateGenerate, StatePreview}:                             "Files generated and staged",
	{StatePreview, StateApplyChanges}:                         "Changes approved",
	{StatePreview, StateAbort}:                                "Changes rejected",
	{StatePreview, StateReviseIntent}:                         "Revision requested",
	{StateReviseIntent, StatePlan}:                            "Intents revised",
	{StateReviseIntent, StateHandleUnclear}:                   "Revision not actionable",
	{StateReviseIntent, StateHandleUnsupported}:               "Revision requests an unsupported building block",
}

// TransitionReason describes why from → to happens.
func (sm *StateMachine) TransitionReason(from, to State) string {
	if reason, ok := transitionReasons[[2]State{from, to}]; ok {
		return reason
	}
	switch {
	case to == StateHandleError:
		return "Phase failed"
	case to == StateDone && from.IsHandler():
		return "Cycle finished"
	case sm.CanTransition(from, to):
		return "Phase completed"
	}
	return "Unknown transition"
}
