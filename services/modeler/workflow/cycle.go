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
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianModeler/services/modeler/approval"
	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
	"github.com/AleutianAI/AleutianModeler/services/modeler/mutate"
	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
	"github.com/AleutianAI/AleutianModeler/services/modeler/preview"
	"github.com/AleutianAI/AleutianModeler/services/modeler/project"
	"github.com/AleutianAI/AleutianModeler/services/modeler/session"
)

// ApprovalPending is the approval of a cycle that has not been previewed.
const ApprovalPending approval.Action = "pending"

// Cycle is the state of one user turn.
//
// Phases read and write its fields. Routing is decided from these fields
// only.
//
// # Thread Safety
//
// Not safe for concurrent use. The engine runs one phase at a time.
type Cycle struct {
	ID        string
	SessionID string
	UserInput string

	// Summary is the compacted conversation, if any.
	Summary string

	// History holds the most recent session messages.
	History session.History

	Intents []intent.Intent

	Metadata       project.Metadata
	BuildingBlocks []project.BuildingBlock
	Sources        map[string]string

	Plan         plan.Steps
	PlanWarnings []string

	GeneratedFiles     []mutate.GeneratedFile
	GenerationErrors   []mutate.FileError
	GenerationWarnings []string

	// Preview is the summary shown at the last approval.
	Preview *preview.Summary

	Approval         approval.Action
	RevisionFeedback string

	// RevisionHistory is append-only. Entry k is the state the k-th
	// revision was requested against.
	RevisionHistory []intent.RevisionEntry

	// Applied and Deleted are the project-relative paths changed by
	// ApplyChanges.
	Applied []string
	Deleted []string

	FinalOutput string
	Err         error

	State   State
	Visited []State

	StartedAt time.Time
}

// NewCycle creates a cycle for userInput in state DistillIntent.
func NewCycle(sessionID, userInput, summary string, history session.History) *Cycle {
	return &Cycle{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserInput: userInput,
		Summary:   summary,
		History:   history,
		Approval:  ApprovalPending,
		State:     StateDistillIntent,
		Visited:   []State{StateDistillIntent},
		StartedAt: time.Now(),
	}
}

// Revisions returns the number of revisions requested so far.
func (c *Cycle) Revisions() int {
	return len(c.RevisionHistory)
}

// Outcome names how the cycle ended: the handler state it passed through.
func (c *Cycle) Outcome() string {
	for i := len(c.Visited) - 1; i >= 0; i-- {
		if c.Visited[i].IsHandler() {
			return c.Visited[i].String()
		}
	}
	return c.State.String()
}

// Summarize returns the session record of a finished cycle.
func (c *Cycle) Summarize(now time.Time) session.CycleSummary {
	files := make([]string, 0, len(c.GeneratedFiles))
	for _, f := range c.GeneratedFiles {
		files = append(files, f.Path)
	}
	warnings := append([]string(nil), c.PlanWarnings...)
	warnings = append(warnings, c.GenerationWarnings...)
	return session.CycleSummary{
		CycleID:     c.ID,
		UserInput:   c.UserInput,
		Outcome:     c.Outcome(),
		FinalOutput: c.FinalOutput,
		Files:       files,
		Warnings:    warnings,
		CompletedAt: now.UTC(),
	}
}
