// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workflow drives one change cycle from a user request to applied
// files.
//
// A cycle walks a fixed graph of states:
//
//	DistillIntent → ExtractMetadata → ExtractBuildingBlocks →
//	ExtractRelevantSources → Plan → Generate → Preview
//
// and leaves Preview to ApplyChanges, Abort or ReviseIntent. Revise loops
// back to Plan. Unclear, unsupported and failed requests end in a handler
// state. Every handler goes to Done.
package workflow

// State is a workflow state.
type State string

const (
	StateDistillIntent          State = "distill_intent"
	StateExtractMetadata        State = "extract_metadata"
	StateExtractBuildingBlocks  State = "extract_building_blocks"
	StateExtractRelevantSources State = "extract_relevant_sources"
	StatePlan                   State = "plan"
	StateGenerate               State = "generate"
	StatePreview                State = "preview"
	StateApplyChanges           State = "apply_changes"
	StateAbort                  State = "abort"
	StateReviseIntent           State = "revise_intent"
	StateHandleUnclear          State = "handle_unclear"
	StateHandleError            State = "handle_error"
	StateHandleUnsupported      State = "handle_unsupported"
	StateDone                   State = "done"
)

// AllStates returns every state in graph order.
func AllStates() []State {
	return []State{
		StateDistillIntent,
		StateExtractMetadata,
		StateExtractBuildingBlocks,
		StateExtractRelevantSources,
		StatePlan,
		StateGenerate,
		StatePreview,
		StateApplyChanges,
		StateAbort,
		StateReviseIntent,
		StateHandleUnclear,
		StateHandleError,
		StateHandleUnsupported,
		StateDone,
	}
}

func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether the cycle ends in s.
func (s State) IsTerminal() bool {
	return s == StateDone
}

// IsHandler reports whether s produces the final output of a cycle.
func (s State) IsHandler() bool {
	switch s {
	case StateApplyChanges, StateAbort, StateHandleUnclear, StateHandleError, StateHandleUnsupported:
		return true
	}
	return false
}
