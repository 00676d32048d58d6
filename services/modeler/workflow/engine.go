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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxRevisions bounds the revise loop of one cycle.
const DefaultMaxRevisions = 5

// defaultMaxSteps bounds the number of phases one cycle may run.
const defaultMaxSteps = 200

// PhaseHook is called before each phase runs.
type PhaseHook func(c *Cycle, state State)

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRevisions sets the revision bound. Values below zero are ignored.
func WithMaxRevisions(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRevisions = n
		}
	}
}

// WithTotalTimeout bounds the wall time of one cycle. Zero disables it.
func WithTotalTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.totalTimeout = d
	}
}

// WithPhaseHook registers a hook called before each phase.
func WithPhaseHook(hook PhaseHook) Option {
	return func(e *Engine) {
		e.hook = hook
	}
}

// WithPhase overrides the phase of one state.
func WithPhase(state State, phase Phase) Option {
	return func(e *Engine) {
		e.overrides = append(e.overrides, override{state: state, phase: phase})
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

type override struct {
	state State
	phase Phase
}

// Result is the outcome of Engine.Run.
type Result struct {
	CycleID     string
	State       State
	Outcome     string
	FinalOutput string
	Visited     []State
	Duration    time.Duration
	Err         error
}

// Engine drives cycles through the state machine.
//
// # Description
//
// Run executes the phase of the current state, validates the returned
// transition and repeats until Done. A phase error, an invalid transition,
// cancellation or a timeout records the error on the cycle and moves it to
// HandleError, which produces the final output.
//
// # Thread Safety
//
// An Engine may run several cycles concurrently if its dependencies allow
// it. A single cycle must not be run twice at once.
type Engine struct {
	sm           *StateMachine
	registry     *PhaseRegistry
	maxRevisions int
	totalTimeout time.Duration
	maxSteps     int
	hook         PhaseHook
	overrides    []override
	logger       *slog.Logger
}

// NewEngine creates an Engine with the built-in phases.
//
// # Outputs
//
//   - *Engine: The engine.
//   - error: A nil dependency.
func NewEngine(deps Dependencies, opts ...Option) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		sm:           NewStateMachine(),
		registry:     NewPhaseRegistry(),
		maxRevisions: DefaultMaxRevisions,
		maxSteps:     defaultMaxSteps,
		logger:       slog.Default().With(slog.String("component", "workflow")),
	}
	for _, opt := range opts {
		opt(e)
	}

	p := &pipeline{Dependencies: deps, maxRevisions: e.maxRevisions, logger: e.logger}
	p.register(e.registry)
	for _, o := range e.overrides {
		e.registry.Register(o.state, o.phase)
	}
	return e, nil
}

// StateMachine returns the engine state machine.
func (e *Engine) StateMachine() *StateMachine {
	return e.sm
}

// Registry returns the engine phase registry.
func (e *Engine) Registry() *PhaseRegistry {
	return e.registry
}

// Run drives c to Done.
//
// # Outputs
//
//   - *Result: Always set for a non-nil cycle. Result.Err mirrors c.Err.
//   - error: ErrNilCycle only. Workflow failures are reported in the
//     result and the final output.
func (e *Engine) Run(ctx context.Context, c *Cycle) (*Result, error) {
	if c == nil {
		return nil, ErrNilCycle
	}
	start := time.Now()
	if e.totalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.totalTimeout)
		defer cancel()
	}

	logger := e.logger.With(slog.String("cycle_id", c.ID), slog.String("session_id", c.SessionID))
	logger.Info("cycle started", slog.Int("input_chars", len(c.UserInput)))

	for steps := 0; !c.State.IsTerminal(); steps++ {
		if steps >= e.maxSteps {
			e.end(c, ErrTooManySteps, logger)
			break
		}
		if c.State != StateHandleError {
			if err := ctx.Err(); err != nil {
				e.fail(c, e.contextError(err), logger)
				continue
			}
		}

		phase, ok := e.registry.Get(c.State)
		if !ok {
			e.fail(c, fmt.Errorf("%w: %s", ErrNoPhase, c.State), logger)
			continue
		}

		next, err := e.execute(ctx, c, phase, logger)
		if err != nil {
			e.fail(c, err, logger)
			continue
		}
		from := c.State
		if err := e.sm.Transition(c, next); err != nil {
			e.fail(c, err, logger)
			continue
		}
		logger.Debug("state transition",
			slog.String("from", from.String()),
			slog.String("to", next.String()),
			slog.String("reason", e.sm.TransitionReason(from, next)))
	}

	outcome := c.Outcome()
	cyclesTotal.WithLabelValues(outcome).Inc()
	logger.Info("cycle finished",
		slog.String("outcome", outcome),
		slog.Int("revisions", c.Revisions()),
		slog.Duration("duration", time.Since(start)))

	return &Result{
		CycleID:     c.ID,
		State:       c.State,
		Outcome:     outcome,
		FinalOutput: c.FinalOutput,
		Visited:     append([]State(nil), c.Visited...),
		Duration:    time.Since(start),
		Err:         c.Err,
	}, nil
}

func (e *Engine) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}

// execute runs one phase inside a span.
func (e *Engine) execute(ctx context.Context, c *Cycle, phase Phase, logger *slog.Logger) (State, error) {
	state := c.State
	if e.hook != nil {
		e.hook(c, state)
	}

	ctx, span := tracer.Start(ctx, "workflow."+phase.Name(),
		trace.WithAttributes(
			attribute.String("cycle.id", c.ID),
			attribute.String("workflow.state", state.String()),
			attribute.Int("workflow.revisions", c.Revisions()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := time.Now()
	next, err := phase.Execute(ctx, c)
	phaseDuration.WithLabelValues(state.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		phaseExecutionsTotal.WithLabelValues(state.String(), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("phase failed",
			slog.String("phase", phase.Name()),
			slog.String("error", err.Error()))
		return next, err
	}

	phaseExecutionsTotal.WithLabelValues(state.String(), "ok").Inc()
	span.SetAttributes(attribute.String("workflow.next_state", next.String()))
	span.SetStatus(codes.Ok, "")
	logger.Debug("phase completed",
		slog.String("phase", phase.Name()),
		slog.String("next_state", next.String()))
	return next, nil
}

// fail records err on the cycle and moves it to HandleError. A failure in
// HandleError itself ends the cycle.
func (e *Engine) fail(c *Cycle, err error, logger *slog.Logger) {
	c.Err = err
	c.FinalOutput = "error: " + err.Error()

	if c.State == StateHandleError || !e.sm.CanTransition(c.State, StateHandleError) {
		e.end(c, err, logger)
		return
	}
	_ = e.sm.Transition(c, StateHandleError)
}

// end forces the cycle to Done with err.
func (e *Engine) end(c *Cycle, err error, logger *slog.Logger) {
	c.Err = err
	c.FinalOutput = "error: " + err.Error()
	logger.Error("cycle ended by error",
		slog.String("state", c.State.String()),
		slog.String("error", err.Error()))
	c.State = StateDone
	c.Visited = append(c.Visited, StateDone)
}
