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
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/modeler/approval"
	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
)

// AbortOutput is the final output of an aborted cycle.
const AbortOutput = "Aborted. No changes were made."

// UnclearOutput is the final output when no intent could be determined.
const UnclearOutput = "👋 I couldn't quite determine your intent.\n\n" +
	"You can ask me to add or remove aggregates, value objects and repositories,\n" +
	"or to add properties and methods to them. Try something like:\n\n" +
	"- 'Create an Order aggregate with line items'\n" +
	"- 'Add a Rename method to the Customer aggregate'\n" +
	"- 'Add a repository for Order with a GetByCustomerId method'\n"

// errorOutput prefers the message of an error intent over the cycle error.
func errorOutput(c *Cycle) string {
	if in, ok := intent.FirstError(c.Intents); ok {
		msg := in.ErrorMessage
		if msg == "" {
			msg = "Unknown error"
		}
		return "❌ An error occurred while distilling intent: " + msg
	}
	if c.Err != nil {
		return "error: " + c.Err.Error()
	}
	return "error: unknown error"
}

func unsupportedOutput(c *Cycle) string {
	var b strings.Builder
	b.WriteString("⚠️ The request was understood, but these building block(s) aren't supported yet:\n")
	for _, block := range intent.UnsupportedBlocks(c.Intents) {
		fmt.Fprintf(&b, "- %s\n", block)
	}
	b.WriteString("\nYou can work with one of the supported building blocks instead:\n")
	for _, block := range intent.SupportedBuildingBlocks() {
		fmt.Fprintf(&b, "- %s\n", block)
	}
	return strings.TrimRight(b.String(), "\n")
}

func applyOutput(written, deleted []string) string {
	var b strings.Builder
	b.WriteString("Applied changes:\n\n")
	for _, p := range written {
		fmt.Fprintf(&b, "✅ %s\n", p)
	}
	for _, p := range deleted {
		fmt.Fprintf(&b, "❌ %s\n", p)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *pipeline) handleError(c *Cycle) (State, error) {
	p.discardStaged(c)
	c.FinalOutput = errorOutput(c)
	c.Approval = approval.ActionAbort
	return StateDone, nil
}

func (p *pipeline) handleUnclear(c *Cycle) (State, error) {
	c.FinalOutput = UnclearOutput
	return StateDone, nil
}

func (p *pipeline) handleUnsupported(c *Cycle) (State, error) {
	c.FinalOutput = unsupportedOutput(c)
	return StateDone, nil
}

func (p *pipeline) abort(c *Cycle) (State, error) {
	p.discardStaged(c)
	c.FinalOutput = AbortOutput
	return StateDone, nil
}

func (p *pipeline) discardStaged(c *Cycle) {
	if err := p.Stager.Reset(); err != nil {
		p.logger.Warn("could not clear staged files",
			slog.String("cycle_id", c.ID),
			slog.String("error", err.Error()))
	}
}
