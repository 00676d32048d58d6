// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package approval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/AleutianAI/AleutianModeler/pkg/ux"
)

// ErrEmptyFeedback is returned by the feedback validator.
var ErrEmptyFeedback = errors.New("describe what should change")

// InteractiveOption configures an Interactive approver.
type InteractiveOption func(*Interactive)

// WithIO sets the terminal streams.
func WithIO(in io.Reader, out io.Writer) InteractiveOption {
	return func(i *Interactive) {
		i.in = in
		i.out = out
	}
}

// WithAccessible switches huh to its line-based accessible mode.
func WithAccessible(enabled bool) InteractiveOption {
	return func(i *Interactive) {
		i.accessible = enabled
	}
}

// Interactive asks the user through a terminal form.
type Interactive struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// NewInteractive creates an Interactive approver on stdin and stdout.
func NewInteractive(opts ...InteractiveOption) *Interactive {
	i := &Interactive{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Detect returns an Interactive approver when stdin and stdout are
// terminals, and nil otherwise.
func Detect() Approver {
	if !ux.IsInteractive() {
		return nil
	}
	return NewInteractive()
}

// Approve implements Approver. Cancelling the form aborts the plan.
func (i *Interactive) Approve(ctx context.Context, req Request) (Decision, error) {
	action := ActionApply
	choose := huh.NewSelect[Action]().
		Title(promptTitle(req)).
		Description(promptDescription(req)).
		Options(
			huh.NewOption("Apply the changes", ActionApply),
			huh.NewOption("Revise the plan", ActionRevise),
			huh.NewOption("Abort", ActionAbort),
		).
		Value(&action)

	if err := i.run(ctx, choose); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return Decision{Action: ActionAbort}, nil
		}
		return Decision{}, err
	}
	if action != ActionRevise {
		return Decision{Action: action}, nil
	}

	var feedback string
	input := huh.NewText().
		Title("What should change?").
		Placeholder("e.g. name the method RegisterPayment and place it after Create").
		Value(&feedback).
		Validate(ValidateFeedback)
	if err := i.run(ctx, input); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return Decision{Action: ActionAbort}, nil
		}
		return Decision{}, err
	}
	return Decision{Action: ActionRevise, Feedback: strings.TrimSpace(feedback)}, nil
}

func (i *Interactive) run(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(i.in).
		WithOutput(i.out).
		WithAccessible(i.accessible)
	return form.RunWithContext(ctx)
}

// ValidateFeedback rejects blank revision feedback.
func ValidateFeedback(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyFeedback
	}
	return nil
}

func promptTitle(req Request) string {
	if req.Destructive {
		return "This plan deletes files. Apply it?"
	}
	return "Apply these changes?"
}

func promptDescription(req Request) string {
	var parts []string
	if req.Summary != nil {
		parts = append(parts, fmt.Sprintf("%d file(s), %d deletion(s)",
			len(req.Summary.Changed()), len(req.Summary.Deletions)))
		if n := len(req.Summary.Errors); n > 0 {
			parts = append(parts, fmt.Sprintf("%d file(s) failed to generate", n))
		}
	}
	if req.Revision > 0 {
		parts = append(parts, fmt.Sprintf("revision %d", req.Revision))
	}
	return strings.Join(parts, ", ")
}
