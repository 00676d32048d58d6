// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mutate applies plan steps to C# source buffers.
//
// The Engine inserts members into a single buffer, re-parsing before every
// insertion so offsets always describe the current text. The Generator
// runs a whole plan: it renders new files, groups modifications per file,
// and processes files in parallel with per-file error isolation.
package mutate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/modeler/format"
	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
	"github.com/AleutianAI/AleutianModeler/services/modeler/render"
	"github.com/AleutianAI/AleutianModeler/services/modeler/syntax"
)

// MethodTemplateID is the template used for methods without a body.
const MethodTemplateID = "aggregate_method"

// Formatter canonicalizes a buffer.
type Formatter interface {
	Format(ctx context.Context, src string) (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine inserts members into C# buffers.
//
// # Description
//
// Insertion points come from a fresh syntax.Tree of the buffer being
// edited. Inserted text is re-indented to the class's member column. When
// no class can be found the text is appended to the buffer and a warning
// is returned; that degraded path never fails.
//
// # Thread Safety
//
// Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	index     *syntax.Index
	formatter Formatter
	renderer  render.Renderer
	logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(index *syntax.Index, formatter Formatter, renderer render.Renderer, opts ...Option) *Engine {
	e := &Engine{
		index:     index,
		formatter: formatter,
		renderer:  renderer,
		logger:    slog.Default().With(slog.String("component", "mutate")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddMethod inserts method text into the first class of buf.
//
// # Description
//
// With a placement reference naming an existing method, the text goes
// after that method's last line, or before its first line (and any comment
// or attribute lines directly above it) for position "before". Otherwise
// it goes after the last method, else after the last member, else right
// after the class's opening brace.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - buf: Current buffer.
//   - text: Method declaration, any indentation.
//   - placement: Optional anchor. May be nil.
//
// # Outputs
//
//   - string: The new buffer. Not formatted.
//   - []string: Warnings for degraded placement.
//   - error: Parse failures only.
func (e *Engine) AddMethod(ctx context.Context, buf, text string, placement *plan.Placement) (string, []string, error) {
	tree, err := e.index.ParseString(ctx, buf)
	if err != nil {
		return "", nil, fmt.Errorf("parsing buffer: %w", err)
	}

	text = strings.TrimSpace(text)
	class, ok := tree.Class()
	if !ok {
		insertionsTotal.WithLabelValues("add_method", anchorFallback).Inc()
		e.logger.Warn("no class declaration found, appending method at end of buffer")
		return buf + "\n\n" + text, []string{"no class declaration found; method appended at end of file"}, nil
	}

	var warnings []string
	block := format.ReindentBlock(text, class.MemberIndent())

	if placement != nil && placement.Reference != "" {
		if ref, found := class.FindMethod(placement.Reference); found {
			insertionsTotal.WithLabelValues("add_method", anchorReference).Inc()
			if placement.Position == plan.PositionBefore {
				pos := leadingTriviaStart(buf, ref.Start)
				if pos <= class.BodyOpen {
					return buf[:ref.Start] + "\n" + block + "\n\n" + buf[ref.Start:], nil, nil
				}
				return buf[:pos] + block + "\n\n" + buf[pos:], nil, nil
			}
			pos := afterMember(buf, class, ref)
			return buf[:pos] + "\n\n" + block + buf[pos:], nil, nil
		}
		msg := fmt.Sprintf("reference method %q not found in %s; using default placement", placement.Reference, class.Name)
		e.logger.Warn("placement reference not found",
			slog.String("reference", placement.Reference),
			slog.String("class", class.Name))
		warnings = append(warnings, msg)
	}

	if last, found := class.LastMethod(); found {
		insertionsTotal.WithLabelValues("add_method", anchorLastMethod).Inc()
		pos := afterMember(buf, class, last)
		return buf[:pos] + "\n\n" + block + buf[pos:], warnings, nil
	}
	if last, found := class.LastMember(); found {
		insertionsTotal.WithLabelValues("add_method", anchorLastMember).Inc()
		pos := afterMember(buf, class, last)
		return buf[:pos] + "\n\n" + block + buf[pos:], warnings, nil
	}

	insertionsTotal.WithLabelValues("add_method", anchorBodyOpen).Inc()
	return insertAfterBodyOpen(buf, class, block, false), warnings, nil
}

// AddProperty inserts property text right after the opening brace of the
// first class of buf.
//
// # Outputs
//
//   - string: The new buffer. Not formatted.
//   - []string: A warning when no class was found.
//   - error: Parse failures only.
func (e *Engine) AddProperty(ctx context.Context, buf, text string) (string, []string, error) {
	tree, err := e.index.ParseString(ctx, buf)
	if err != nil {
		return "", nil, fmt.Errorf("parsing buffer: %w", err)
	}

	text = strings.TrimSpace(text)
	class, ok := tree.Class()
	if !ok {
		insertionsTotal.WithLabelValues("add_property", anchorFallback).Inc()
		e.logger.Warn("no class declaration found, appending property at end of buffer")
		return buf + "\n\n" + text, []string{"no class declaration found; property appended at end of file"}, nil
	}

	insertionsTotal.WithLabelValues("add_property", anchorBodyOpen).Inc()
	block := format.ReindentBlock(text, class.MemberIndent())
	return insertAfterBodyOpen(buf, class, block, len(class.Declarations) > 0), nil, nil
}

// afterMember returns the insertion offset after member: the end of its
// last line, or the member end itself when the class closes on that line.
func afterMember(buf string, class *syntax.ClassNode, member syntax.MemberNode) int {
	pos := syntax.LineEnd(buf, member.End)
	if pos > class.BodyClose {
		return member.End
	}
	return pos
}

// insertAfterBodyOpen places block on its own line after the class's '{'.
// separate adds a blank line between block and the existing first member.
func insertAfterBodyOpen(buf string, class *syntax.ClassNode, block string, separate bool) string {
	open := class.BodyOpen + 1
	lineEnd := syntax.LineEnd(buf, open)

	if strings.TrimSpace(buf[open:lineEnd]) == "" {
		ins := "\n" + block
		if separate {
			ins += "\n"
		}
		return buf[:lineEnd] + ins + buf[lineEnd:]
	}
	return buf[:open] + "\n" + block + "\n" + buf[open:]
}

// leadingTriviaStart returns the start of the line holding off, moved up
// over directly preceding comment and attribute lines.
func leadingTriviaStart(buf string, off int) int {
	start := syntax.LineStart(buf, off)
	for start > 0 {
		prev := syntax.LineStart(buf, start-1)
		line := strings.TrimSpace(buf[prev : start-1])
		if !isTriviaLine(line) {
			break
		}
		start = prev
	}
	return start
}

func isTriviaLine(line string) bool {
	for _, prefix := range []string{"//", "/*", "*", "["} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// RenderMethod produces the declaration text for a method descriptor.
//
// A descriptor with an explicit body is rendered verbatim; otherwise the
// aggregate_method template renders it.
func (e *Engine) RenderMethod(ctx context.Context, mc plan.ModifyContext) (string, error) {
	m := mc.Method
	if m == nil {
		return "", fmt.Errorf("%w: add_method requires a method", ErrMissingDescriptor)
	}
	if m.HasBody() {
		return fmt.Sprintf("public %s %s(%s)\n{\n    %s\n}", m.Return(), m.Name, m.ParameterList(), strings.TrimSpace(m.Body)), nil
	}
	return e.renderer.Render(ctx, MethodTemplateID, mc.AsMap())
}

// RenderProperty produces the declaration text for a property descriptor.
func RenderProperty(p plan.PropertyDescriptor) string {
	decl := fmt.Sprintf("public %s %s { get; set; }", p.Type, p.Name)
	if p.Default != nil {
		decl += fmt.Sprintf(" = %s;", *p.Default)
	}
	return decl
}

// ApplyModifications applies steps to buf in list order and formats the
// result.
//
// # Outputs
//
//   - string: The formatted buffer.
//   - []string: Placement warnings, prefixed with path.
//   - error: ErrUnsupportedModification, ErrMissingDescriptor, render
//     errors, or parse/format failures. The first error stops the file.
func (e *Engine) ApplyModifications(ctx context.Context, path, buf string, steps []plan.ModifyFile) (string, []string, error) {
	var warnings []string
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return "", warnings, err
		}

		var (
			next string
			warn []string
			err  error
		)
		switch step.Modification {
		case plan.AddMethod:
			var text string
			if text, err = e.RenderMethod(ctx, step.Context); err == nil {
				next, warn, err = e.AddMethod(ctx, buf, text, step.Context.Placement)
			}
		case plan.AddProperty:
			if step.Context.Property == nil {
				err = fmt.Errorf("%w: add_property requires a property", ErrMissingDescriptor)
			} else {
				next, warn, err = e.AddProperty(ctx, buf, RenderProperty(*step.Context.Property))
			}
		default:
			err = fmt.Errorf("%w: %q", ErrUnsupportedModification, step.Modification)
		}
		if err != nil {
			return "", warnings, err
		}

		for _, w := range warn {
			warnings = append(warnings, path+": "+w)
		}
		buf = next
	}

	formatted, err := e.formatter.Format(ctx, buf)
	if err != nil {
		return "", warnings, fmt.Errorf("formatting %s: %w", path, err)
	}
	return formatted, warnings, nil
}

// CreateFile renders and formats a new file.
func (e *Engine) CreateFile(ctx context.Context, step plan.CreateFile) (string, error) {
	text, err := e.renderer.Render(ctx, step.Template, step.Context)
	if err != nil {
		return "", err
	}
	formatted, err := e.formatter.Format(ctx, text)
	if err != nil {
		return "", fmt.Errorf("formatting %s: %w", step.Path(), err)
	}
	return formatted, nil
}
