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
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/AleutianAI/AleutianModeler/services/modeler/approval"
	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
	"github.com/AleutianAI/AleutianModeler/services/modeler/mutate"
	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
	"github.com/AleutianAI/AleutianModeler/services/modeler/planner"
	"github.com/AleutianAI/AleutianModeler/services/modeler/preview"
	"github.com/AleutianAI/AleutianModeler/services/modeler/project"
	"github.com/AleutianAI/AleutianModeler/services/modeler/session"
	"github.com/AleutianAI/AleutianModeler/services/modeler/staging"
)

// Planner turns intents into plan steps.
type Planner interface {
	Plan(intents []intent.Intent, md project.Metadata, known map[string]struct{}) planner.Result
}

// Generator produces the final content of every touched file.
type Generator interface {
	Generate(ctx context.Context, steps []plan.Step, projectRoot string) (*mutate.Batch, error)
}

// Stager holds the generated buffers of the current cycle.
type Stager interface {
	staging.StagedSet
	Reset() error
	Stage(rel, content string) error
}

// Previewer diffs generated files against the project.
type Previewer interface {
	Build(ctx context.Context, files []mutate.GeneratedFile, steps plan.Steps, warnings []string, errs []mutate.FileError) (*preview.Summary, error)
}

// Committer applies staged files and deletions atomically.
type Committer interface {
	Begin(ctx context.Context, sessionID string, staged staging.StagedSet, deletes []plan.Step) (*staging.Transaction, error)
}

// Dependencies are the collaborators of the built-in phases.
type Dependencies struct {
	Source    intent.Source
	Scanner   project.Scanner
	Planner   Planner
	Generator Generator
	Stager    Stager
	Previewer Previewer
	Approver  approval.Approver
	Committer Committer

	// Output receives the rendered preview. Nil renders nothing.
	Output io.Writer
}

func (d Dependencies) validate() error {
	missing := func(name string) error {
		return fmt.Errorf("workflow dependency %s is nil", name)
	}
	switch {
	case d.Source == nil:
		return missing("Source")
	case d.Scanner == nil:
		return missing("Scanner")
	case d.Planner == nil:
		return missing("Planner")
	case d.Generator == nil:
		return missing("Generator")
	case d.Stager == nil:
		return missing("Stager")
	case d.Previewer == nil:
		return missing("Previewer")
	case d.Approver == nil:
		return missing("Approver")
	case d.Committer == nil:
		return missing("Committer")
	}
	return nil
}

// pipeline implements the built-in phases.
type pipeline struct {
	Dependencies
	maxRevisions int
	logger       *slog.Logger
}

func (p *pipeline) register(r *PhaseRegistry) {
	add := func(s State, fn func(ctx context.Context, c *Cycle) (State, error)) {
		r.Register(s, PhaseFunc{PhaseName: s.String(), Fn: fn})
	}
	noCtx := func(fn func(c *Cycle) (State, error)) func(context.Context, *Cycle) (State, error) {
		return func(_ context.Context, c *Cycle) (State, error) { return fn(c) }
	}

	add(StateDistillIntent, p.distill)
	add(StateExtractMetadata, p.extractMetadata)
	add(StateExtractBuildingBlocks, p.extractBuildingBlocks)
	add(StateExtractRelevantSources, p.extractRelevantSources)
	add(StatePlan, p.plan)
	add(StateGenerate, p.generate)
	add(StatePreview, p.preview)
	add(StateReviseIntent, p.revise)
	add(StateApplyChanges, p.apply)
	add(StateAbort, noCtx(p.abort))
	add(StateHandleError, noCtx(p.handleError))
	add(StateHandleUnclear, noCtx(p.handleUnclear))
	add(StateHandleUnsupported, noCtx(p.handleUnsupported))
}

func recentTurns(h session.History) []string {
	recent := h.Recent(session.RecentMessages)
	out := make([]string, 0, len(recent))
	for _, m := range recent {
		out = append(out, m.Role+": "+m.Content)
	}
	return out
}

// distill asks the source for intents. A source failure is recorded as an
// error intent so the error handler reports it.
func (p *pipeline) distill(ctx context.Context, c *Cycle) (State, error) {
	intents, err := p.Source.Distill(ctx, intent.DistillRequest{
		UserInput: c.UserInput,
		Summary:   c.Summary,
		Recent:    recentTurns(c.History),
	})
	if err != nil {
		c.Err = err
		c.Intents = []intent.Intent{{Kind: intent.Error, ErrorMessage: err.Error()}}
		return StateHandleError, nil
	}
	c.Intents = intents
	return intentTarget(RouteIntent(c), StateExtractMetadata), nil
}

func (p *pipeline) extractMetadata(ctx context.Context, c *Cycle) (State, error) {
	md, err := p.Scanner.Metadata(ctx)
	if err != nil {
		return StateHandleError, fmt.Errorf("extracting project metadata: %w", err)
	}
	c.Metadata = md
	return StateExtractBuildingBlocks, nil
}

func (p *pipeline) extractBuildingBlocks(ctx context.Context, c *Cycle) (State, error) {
	blocks, err := p.Scanner.BuildingBlocks(ctx, c.Metadata)
	if err != nil {
		return StateHandleError, fmt.Errorf("extracting building blocks: %w", err)
	}
	c.BuildingBlocks = blocks
	return StateExtractRelevantSources, nil
}

func (p *pipeline) extractRelevantSources(ctx context.Context, c *Cycle) (State, error) {
	sources, err := p.Scanner.RelevantSources(ctx, c.Metadata, c.Intents, c.BuildingBlocks)
	if err != nil {
		return StateHandleError, fmt.Errorf("extracting relevant sources: %w", err)
	}
	c.Sources = sources
	return StatePlan, nil
}

func (p *pipeline) plan(ctx context.Context, c *Cycle) (State, error) {
	known, err := p.Scanner.KnownPaths(ctx, c.Metadata)
	if err != nil {
		return StateHandleError, fmt.Errorf("listing project files: %w", err)
	}
	res := p.Planner.Plan(c.Intents, c.Metadata, known)
	c.Plan = res.Steps
	c.PlanWarnings = res.Warnings
	p.logger.Info("plan ready",
		slog.String("cycle_id", c.ID),
		slog.Int("steps", len(c.Plan)),
		slog.Int("warnings", len(c.PlanWarnings)))
	return StateGenerate, nil
}

// generate renders every touched file and stages the results into a freshly
// cleared staging area.
func (p *pipeline) generate(ctx context.Context, c *Cycle) (State, error) {
	if err := p.Stager.Reset(); err != nil {
		return StateHandleError, fmt.Errorf("resetting staging area: %w", err)
	}
	c.GeneratedFiles = nil
	c.GenerationErrors = nil
	c.GenerationWarnings = nil

	batch, err := p.Generator.Generate(ctx, c.Plan, c.Metadata.ProjectRoot)
	if err != nil {
		return StateHandleError, fmt.Errorf("generating files: %w", err)
	}
	for _, f := range batch.Files {
		if err := p.Stager.Stage(f.Path, f.Content); err != nil {
			return StateHandleError, fmt.Errorf("staging %s: %w", f.Path, err)
		}
	}
	c.GeneratedFiles = batch.Files
	c.GenerationErrors = batch.Errors
	c.GenerationWarnings = batch.Warnings
	return StatePreview, nil
}

func (p *pipeline) preview(ctx context.Context, c *Cycle) (State, error) {
	warnings := append(slices.Clip(c.PlanWarnings), c.GenerationWarnings...)
	summary, err := p.Previewer.Build(ctx, c.GeneratedFiles, c.Plan, warnings, c.GenerationErrors)
	if err != nil {
		return StateHandleError, fmt.Errorf("building preview: %w", err)
	}
	c.Preview = summary
	if p.Output != nil {
		preview.Render(p.Output, summary)
	}

	decision, err := p.Approver.Approve(ctx, approval.Request{
		Summary:     summary,
		Destructive: c.Plan.HasDestructive(),
		Revision:    c.Revisions(),
	})
	if err != nil {
		return StateHandleError, fmt.Errorf("requesting approval: %w", err)
	}
	c.Approval = decision.Action
	c.RevisionFeedback = decision.Feedback
	return approvalTarget(RouteApproval(c)), nil
}

// revise records the rejected state and re-derives intents from the
// feedback. The reviser sees every earlier entry plus the current one.
func (p *pipeline) revise(ctx context.Context, c *Cycle) (State, error) {
	if c.Revisions() >= p.maxRevisions {
		return StateHandleError, fmt.Errorf("%w: at most %d revisions per request", ErrRevisionLimit, p.maxRevisions)
	}
	revisionsTotal.Inc()

	prior := slices.Clip(c.RevisionHistory)
	current := intent.RevisionEntry{
		Feedback: c.RevisionFeedback,
		Intents:  c.Intents,
		Plan:     c.Plan,
	}
	c.RevisionHistory = append(c.RevisionHistory, current)

	intents, err := p.Source.Revise(ctx, intent.ReviseRequest{
		UserInput: c.UserInput,
		Summary:   c.Summary,
		Prior:     prior,
		Current:   current,
	})
	if err != nil {
		return StateHandleError, fmt.Errorf("revising intent: %w", err)
	}

	c.Intents = intents
	c.Approval = ApprovalPending
	c.RevisionFeedback = ""
	return intentTarget(RouteIntent(c), StatePlan), nil
}

// apply commits the staged files and the plan deletions in one
// transaction.
func (p *pipeline) apply(ctx context.Context, c *Cycle) (State, error) {
	deletes, err := relativeDeletes(c.Metadata.ProjectRoot, c.Plan.Deletions())
	if err != nil {
		return StateHandleError, err
	}

	tx, err := p.Committer.Begin(ctx, c.SessionID, p.Stager, deletes)
	if err != nil {
		return StateHandleError, fmt.Errorf("starting apply: %w", err)
	}
	result, err := tx.Commit(ctx)
	if err != nil {
		return StateHandleError, fmt.Errorf("applying changes: %w", err)
	}

	c.Applied = result.Written
	c.Deleted = result.Deleted
	c.FinalOutput = applyOutput(result.Written, result.Deleted)
	p.discardStaged(c)
	return StateDone, nil
}

// relativeDeletes rewrites delete step paths relative to root.
func relativeDeletes(root string, steps plan.Steps) ([]plan.Step, error) {
	out := make([]plan.Step, 0, len(steps))
	for _, step := range steps {
		rel, err := mutate.RelativePath(root, step.Path())
		if err != nil {
			return nil, fmt.Errorf("deleting %s: %w", step.Path(), err)
		}
		switch s := step.(type) {
		case plan.DeleteFile:
			s.FilePath = rel
			out = append(out, s)
		case plan.DeleteDirectory:
			s.FilePath = rel
			out = append(out, s)
		}
	}
	return out, nil
}
