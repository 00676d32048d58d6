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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

const customerPath = "src/Shop/Domain/Model/Customer/Customer.cs"

// fakeSource answers Distill and Revise from queues and records revise
// requests.
type fakeSource struct {
	mu          sync.Mutex
	distill     []intent.Intent
	distillErr  error
	distillReqs []intent.DistillRequest
	revisions   [][]intent.Intent
	reviseErr   error
	reviseReqs  []intent.ReviseRequest
}

func (f *fakeSource) Distill(_ context.Context, req intent.DistillRequest) ([]intent.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.distillReqs = append(f.distillReqs, req)
	return f.distill, f.distillErr
}

func (f *fakeSource) Revise(_ context.Context, req intent.ReviseRequest) ([]intent.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviseReqs = append(f.reviseReqs, req)
	if f.reviseErr != nil {
		return nil, f.reviseErr
	}
	if len(f.revisions) == 0 {
		return []intent.Intent{{Kind: intent.AddAggregate, Target: "Customer"}}, nil
	}
	next := f.revisions[0]
	f.revisions = f.revisions[1:]
	return next, nil
}

type fakeScanner struct {
	root        string
	metadataErr error
}

func (f *fakeScanner) Metadata(context.Context) (project.Metadata, error) {
	if f.metadataErr != nil {
		return project.Metadata{}, f.metadataErr
	}
	return project.Metadata{
		ProjectName:        "Shop",
		RootNamespace:      "Shop",
		ProjectRoot:        f.root,
		SourcePath:         "src",
		DomainPath:         "src/Shop/Domain",
		ApplicationPath:    "src/Shop/Application",
		InfrastructurePath: "src/Shop/Infrastructure",
	}, nil
}

func (f *fakeScanner) BuildingBlocks(context.Context, project.Metadata) ([]project.BuildingBlock, error) {
	return []project.BuildingBlock{{Type: project.AggregateRoot, Name: "Order"}}, nil
}

func (f *fakeScanner) KnownPaths(context.Context, project.Metadata) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (f *fakeScanner) RelevantSources(context.Context, project.Metadata, []intent.Intent, []project.BuildingBlock) (map[string]string, error) {
	return map[string]string{"src/Shop/Domain/Model/Order/Order.cs": "class Order {}"}, nil
}

// fakePlanner plans one create step per add_aggregate intent plus any
// extra steps.
type fakePlanner struct {
	extra plan.Steps
}

func (f *fakePlanner) Plan(intents []intent.Intent, md project.Metadata, _ map[string]struct{}) planner.Result {
	var steps plan.Steps
	for _, in := range intents {
		if in.Kind != intent.AddAggregate {
			continue
		}
		steps = append(steps, plan.CreateFile{
			Header:   plan.Header{FilePath: md.DomainPath + "/Model/" + in.Target + "/" + in.Target + ".cs", Summary: "Create " + in.Target},
			Template: planner.TemplateAggregateRoot,
		})
	}
	steps = append(steps, f.extra...)
	return planner.Result{Steps: steps, Warnings: []string{"planned"}}
}

type fakeGenerator struct{}

func (fakeGenerator) Generate(_ context.Context, steps []plan.Step, _ string) (*mutate.Batch, error) {
	batch := &mutate.Batch{}
	for _, s := range steps {
		if s.Type() != plan.StepCreateFile {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(s.Path()), ".cs")
		batch.Files = append(batch.Files, mutate.GeneratedFile{
			Path:    s.Path(),
			Content: "public class " + name + "\n{\n}\n",
		})
	}
	return batch, nil
}

type fixture struct {
	root     string
	source   *fakeSource
	scanner  *fakeScanner
	planner  *fakePlanner
	area     *staging.Area
	approver *approval.Scripted
}

func newFixture(t *testing.T, decisions ...approval.Decision) *fixture {
	t.Helper()
	root := t.TempDir()
	area, err := staging.NewArea(filepath.Join(t.TempDir(), "generated"), nil)
	require.NoError(t, err)
	return &fixture{
		root:     root,
		source:   &fakeSource{distill: []intent.Intent{{Kind: intent.AddAggregate, Target: "Customer"}}},
		scanner:  &fakeScanner{root: root},
		planner:  &fakePlanner{},
		area:     area,
		approver: approval.NewScripted(decisions...),
	}
}

func (f *fixture) engine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(Dependencies{
		Source:    f.source,
		Scanner:   f.scanner,
		Planner:   f.planner,
		Generator: fakeGenerator{},
		Stager:    f.area,
		Previewer: preview.NewBuilder(f.root),
		Approver:  approval.NewPolicy(approval.ModeSuggest, f.approver),
		Committer: staging.NewCommitter(f.root, filepath.Join(t.TempDir(), "backup"), staging.WithTracing(false)),
	}, opts...)
	require.NoError(t, err)
	return e
}

func (f *fixture) run(t *testing.T, e *Engine) (*Cycle, *Result) {
	t.Helper()
	c := NewCycle("session-1", "add a Customer aggregate", "", nil)
	res, err := e.Run(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, StateDone, res.State)
	return c, res
}

func stagedPaths(t *testing.T, a *staging.Area) []string {
	t.Helper()
	paths, err := a.Paths()
	require.NoError(t, err)
	return paths
}

func TestStateMachine(t *testing.T) {
	sm := NewStateMachine()

	assert.True(t, sm.CanTransition(StateDistillIntent, StateExtractMetadata))
	assert.True(t, sm.CanTransition(StateReviseIntent, StatePlan))
	assert.True(t, sm.CanTransition(StateApplyChanges, StateHandleError))
	assert.True(t, sm.CanTransition(StateHandleError, StateDone))
	assert.False(t, sm.CanTransition(StateDistillIntent, StatePlan))
	assert.False(t, sm.CanTransition(StateHandleError, StateHandleError))
	assert.Empty(t, sm.ValidTransitionsFrom(StateDone))

	assert.Equal(t,
		[]State{StateAbort, StateApplyChanges, StateHandleError, StateReviseIntent},
		sm.ValidTransitionsFrom(StatePreview))

	c := NewCycle("s", "x", "", nil)
	err := sm.Transition(c, StateGenerate)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateDistillIntent, c.State)

	require.NoError(t, sm.Transition(c, StateExtractMetadata))
	assert.Equal(t, []State{StateDistillIntent, StateExtractMetadata}, c.Visited)

	assert.Equal(t, "Changes approved", sm.TransitionReason(StatePreview, StateApplyChanges))
	assert.Equal(t, "Phase failed", sm.TransitionReason(StatePlan, StateHandleError))
	assert.Equal(t, "Cycle finished", sm.TransitionReason(StateAbort, StateDone))
	assert.Equal(t, "Unknown transition", sm.TransitionReason(StateDone, StatePlan))
}

func TestRouteIntent(t *testing.T) {
	tests := []struct {
		name  string
		kinds []intent.Kind
		want  Route
	}{
		{name: "empty", want: RouteUnclear},
		{name: "control tags only", kinds: []intent.Kind{intent.Greeting, intent.Unsure, "", intent.None, intent.Unclear}, want: RouteUnclear},
		{name: "actionable", kinds: []intent.Kind{intent.Unsure, intent.AddAggregate}, want: RouteValid},
		{name: "unknown tag is valid", kinds: []intent.Kind{"add_saga"}, want: RouteValid},
		{name: "case insensitive", kinds: []intent.Kind{" ADD_AGGREGATE "}, want: RouteValid},
		{name: "unsupported wins over valid", kinds: []intent.Kind{intent.AddAggregate, intent.Unsupported}, want: RouteUnsupported},
		{name: "error wins", kinds: []intent.Kind{intent.Unsupported, intent.AddAggregate, "Error"}, want: RouteError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Cycle{}
			for _, k := range tt.kinds {
				c.Intents = append(c.Intents, intent.Intent{Kind: k})
			}
			assert.Equal(t, tt.want, RouteIntent(c))
		})
	}
}

func TestRouteApproval(t *testing.T) {
	tests := map[string]Route{
		"apply":   RouteApply,
		"yes":     RouteApply,
		" Y ":     RouteApply,
		"revise":  RouteRevise,
		"change":  RouteRevise,
		"abort":   RouteAbort,
		"no":      RouteAbort,
		"pending": RouteAbort,
		"":        RouteAbort,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, RouteApproval(&Cycle{Approval: approval.Action(in)}))
		})
	}
}

func TestNewEngine_RequiresDependencies(t *testing.T) {
	_, err := NewEngine(Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Source")
}

func TestEngine_Apply(t *testing.T) {
	f := newFixture(t, approval.Decision{Action: approval.ActionApply})
	var hooked []State
	e := f.engine(t, WithPhaseHook(func(_ *Cycle, s State) { hooked = append(hooked, s) }))

	c, res := f.run(t, e)

	want := []State{
		StateDistillIntent, StateExtractMetadata, StateExtractBuildingBlocks,
		StateExtractRelevantSources, StatePlan, StateGenerate, StatePreview,
		StateApplyChanges, StateDone,
	}
	assert.Equal(t, want, res.Visited)
	assert.Equal(t, want[:len(want)-1], hooked)
	assert.Equal(t, StateApplyChanges.String(), res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, "Applied changes:\n\n✅ "+customerPath, res.FinalOutput)

	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(customerPath)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "public class Customer")
	assert.Empty(t, stagedPaths(t, f.area), "staging is cleared after apply")

	assert.Equal(t, []string{customerPath}, c.Applied)
	assert.Equal(t, []string{"planned"}, c.PlanWarnings)
	assert.Contains(t, c.Sources, "src/Shop/Domain/Model/Order/Order.cs")
	require.Len(t, c.BuildingBlocks, 1)
	require.NotNil(t, c.Preview)
	assert.Equal(t, approval.ActionApply, c.Approval)

	reqs := f.approver.Requests()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].Destructive)
	assert.Equal(t, 0, reqs[0].Revision)
}

func TestEngine_Abort(t *testing.T) {
	f := newFixture(t, approval.Decision{Action: approval.ActionAbort})
	_, res := f.run(t, f.engine(t))

	assert.Equal(t, AbortOutput, res.FinalOutput)
	assert.Equal(t, StateAbort.String(), res.Outcome)
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(customerPath)))
	assert.True(t, os.IsNotExist(err), "nothing is applied on abort")
	assert.Empty(t, stagedPaths(t, f.area))
}

func TestEngine_NoChangesAbortsWithoutAsking(t *testing.T) {
	f := newFixture(t, approval.Decision{Action: approval.ActionApply})
	f.source.distill = []intent.Intent{{Kind: intent.AddAggregateMethod, Target: "Customer"}}

	_, res := f.run(t, f.engine(t))

	assert.Equal(t, AbortOutput, res.FinalOutput)
	assert.Empty(t, f.approver.Requests())
}

func TestEngine_ReviseHistory(t *testing.T) {
	f := newFixture(t,
		approval.Decision{Action: approval.ActionRevise, Feedback: "first"},
		approval.Decision{Action: approval.ActionRevise, Feedback: "second"},
		approval.Decision{Action: approval.ActionRevise, Feedback: "third"},
		approval.Decision{Action: approval.ActionApply},
	)
	f.source.revisions = [][]intent.Intent{
		{{Kind: intent.AddAggregate, Target: "Client"}},
		{{Kind: intent.AddAggregate, Target: "Buyer"}},
		{{Kind: intent.AddAggregate, Target: "Customer"}},
	}

	c, res := f.run(t, f.engine(t))

	require.Len(t, f.source.reviseReqs, 3)
	for k, req := range f.source.reviseReqs {
		assert.Len(t, req.Prior, k, "revision %d sees every earlier entry", k+1)
		assert.Equal(t, c.RevisionHistory[k], req.Current)
	}
	assert.Equal(t, "first", f.source.reviseReqs[0].Current.Feedback)
	assert.Equal(t, "second", f.source.reviseReqs[2].Prior[1].Feedback)
	assert.Equal(t, "Client", f.source.reviseReqs[1].Current.Intents[0].Target)

	require.Len(t, c.RevisionHistory, 3)
	assert.Equal(t, "third", c.RevisionHistory[2].Feedback)
	assert.Equal(t, "Customer", c.RevisionHistory[0].Intents[0].Target)

	reqs := f.approver.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, 3, reqs[3].Revision)

	assert.Equal(t, "Applied changes:\n\n✅ "+customerPath, res.FinalOutput)
	_, err := os.Stat(filepath.Join(f.root, "src/Shop/Domain/Model/Client/Client.cs"))
	assert.True(t, os.IsNotExist(err), "files of rejected plans are never applied")
}

func TestEngine_RevisionLimit(t *testing.T) {
	f := newFixture(t,
		approval.Decision{Action: approval.ActionRevise, Feedback: "one"},
		approval.Decision{Action: approval.ActionRevise, Feedback: "two"},
	)
	c, res := f.run(t, f.engine(t, WithMaxRevisions(1)))

	assert.ErrorIs(t, res.Err, ErrRevisionLimit)
	assert.Equal(t, StateHandleError.String(), res.Outcome)
	assert.True(t, strings.HasPrefix(res.FinalOutput, "error: revision limit exceeded"), res.FinalOutput)
	assert.Len(t, c.RevisionHistory, 1)
	assert.Empty(t, stagedPaths(t, f.area))
}

func TestEngine_ReviseError(t *testing.T) {
	f := newFixture(t, approval.Decision{Action: approval.ActionRevise, Feedback: "x"})
	boom := errors.New("llm down")
	f.source.reviseErr = boom

	_, res := f.run(t, f.engine(t))
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, "error: revising intent: llm down", res.FinalOutput)
}

func TestEngine_DistillError(t *testing.T) {
	f := newFixture(t)
	f.source.distillErr = errors.New("connection refused")

	c, res := f.run(t, f.engine(t))

	assert.Equal(t, []State{StateDistillIntent, StateHandleError, StateDone}, res.Visited)
	assert.Equal(t, "❌ An error occurred while distilling intent: connection refused", res.FinalOutput)
	assert.Equal(t, approval.ActionAbort, c.Approval)
	assert.Empty(t, stagedPaths(t, f.area))
}

func TestEngine_ErrorIntent(t *testing.T) {
	f := newFixture(t)
	f.source.distill = []intent.Intent{{Kind: intent.Error}}

	_, res := f.run(t, f.engine(t))
	assert.Equal(t, "❌ An error occurred while distilling intent: Unknown error", res.FinalOutput)
	assert.NoError(t, res.Err)
}

func TestEngine_Unclear(t *testing.T) {
	f := newFixture(t)
	f.source.distill = []intent.Intent{{Kind: intent.Greeting}}

	_, res := f.run(t, f.engine(t))
	assert.Equal(t, []State{StateDistillIntent, StateHandleUnclear, StateDone}, res.Visited)
	assert.Equal(t, UnclearOutput, res.FinalOutput)
}

func TestEngine_Unsupported(t *testing.T) {
	f := newFixture(t)
	f.source.distill = []intent.Intent{
		{Kind: intent.AddAggregate, Target: "Order"},
		{Kind: intent.Unsupported, BuildingBlock: "saga"},
	}

	_, res := f.run(t, f.engine(t))
	assert.Equal(t, StateHandleUnsupported.String(), res.Outcome)
	assert.Contains(t, res.FinalOutput, "- saga")
	assert.Contains(t, res.FinalOutput, "- aggregate_root")
}

func TestEngine_MetadataFailure(t *testing.T) {
	f := newFixture(t)
	f.scanner.metadataErr = project.ErrNoSolution

	_, res := f.run(t, f.engine(t))
	assert.ErrorIs(t, res.Err, project.ErrNoSolution)
	assert.True(t, strings.HasPrefix(res.FinalOutput, "error: extracting project metadata"), res.FinalOutput)
	assert.Empty(t, f.approver.Requests())
}

func TestEngine_Canceled(t *testing.T) {
	f := newFixture(t)
	e := f.engine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx, NewCycle("s", "add a Customer aggregate", "", nil))
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrCanceled)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, f.source.distillReqs)
}

func TestEngine_Timeout(t *testing.T) {
	f := newFixture(t)
	slow := PhaseFunc{PhaseName: "slow_metadata", Fn: func(ctx context.Context, _ *Cycle) (State, error) {
		<-ctx.Done()
		return StateExtractBuildingBlocks, nil
	}}
	e := f.engine(t, WithTotalTimeout(20*time.Millisecond), WithPhase(StateExtractMetadata, slow))

	res, err := e.Run(context.Background(), NewCycle("s", "add a Customer aggregate", "", nil))
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Equal(t, StateHandleError.String(), res.Outcome)
}

func TestEngine_InvalidTransition(t *testing.T) {
	f := newFixture(t)
	jump := PhaseFunc{PhaseName: "jump", Fn: func(context.Context, *Cycle) (State, error) {
		return StateApplyChanges, nil
	}}
	_, res := f.run(t, f.engine(t, WithPhase(StatePlan, jump)))

	assert.ErrorIs(t, res.Err, ErrInvalidTransition)
	assert.Equal(t, StateHandleError.String(), res.Outcome)
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(customerPath)))
	assert.True(t, os.IsNotExist(err))
}

func TestEngine_DeletesNormalizedPaths(t *testing.T) {
	f := newFixture(t, approval.Decision{Action: approval.ActionApply})
	legacy := filepath.Join(f.root, "src", "Shop", "Domain", "Model", "Legacy", "Legacy.cs")
	require.NoError(t, os.MkdirAll(filepath.Dir(legacy), 0o755))
	require.NoError(t, os.WriteFile(legacy, []byte("class Legacy {}"), 0o644))

	f.source.distill = []intent.Intent{{Kind: intent.RemoveAggregate, Target: "Legacy"}}
	f.planner.extra = plan.Steps{
		plan.DeleteFile{Header: plan.Header{FilePath: legacy, Summary: "Delete Legacy"}},
	}

	_, res := f.run(t, f.engine(t))

	assert.Equal(t, "Applied changes:\n\n❌ src/Shop/Domain/Model/Legacy/Legacy.cs", res.FinalOutput)
	_, err := os.Stat(legacy)
	assert.True(t, os.IsNotExist(err))

	reqs := f.approver.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Destructive)
}

func TestEngine_DistillSeesRecentHistory(t *testing.T) {
	f := newFixture(t)
	f.source.distill = []intent.Intent{{Kind: intent.Greeting}}
	var h session.History
	for i := 0; i < 6; i++ {
		h = append(h, session.Message{Role: session.RoleUser, Content: string(rune('a' + i))})
	}

	c := NewCycle("s", "hello", "earlier summary", h)
	_, err := f.engine(t).Run(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, f.source.distillReqs, 1)
	req := f.source.distillReqs[0]
	assert.Equal(t, "earlier summary", req.Summary)
	assert.Equal(t, []string{"user: c", "user: d", "user: e", "user: f"}, req.Recent)
}

func TestCycle_Summarize(t *testing.T) {
	c := NewCycle("s", "add Customer", "", nil)
	c.GeneratedFiles = []mutate.GeneratedFile{{Path: customerPath}}
	c.PlanWarnings = []string{"w1"}
	c.GenerationWarnings = []string{"w2"}
	c.FinalOutput = AbortOutput
	c.Visited = append(c.Visited, StatePlan, StateGenerate, StatePreview, StateAbort, StateDone)

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	got := c.Summarize(now)
	assert.Equal(t, c.ID, got.CycleID)
	assert.Equal(t, "abort", got.Outcome)
	assert.Equal(t, []string{customerPath}, got.Files)
	assert.Equal(t, []string{"w1", "w2"}, got.Warnings)
	assert.Equal(t, now, got.CompletedAt)
}
