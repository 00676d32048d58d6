// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package format canonicalizes C# source layout.
//
// The formatter only touches whitespace. It normalizes line endings, puts
// every direct class member on its own line with one blank line between
// members, re-indents the first class body, and removes stray blank lines
// around it. Format(Format(x)) == Format(x) for every input.
package format

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/AleutianAI/AleutianModeler/services/modeler/syntax"
)

var (
	trailingSpace  = regexp.MustCompile(`[ \t]+\n`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	usingNamespace = regexp.MustCompile(`((?:using [^\n]+;\n)+)\s*(namespace\b)`)
)

// Option configures a Formatter.
type Option func(*Formatter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Formatter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Formatter applies the layout conventions.
//
// # Thread Safety
//
// Formatter is stateless and safe for concurrent use.
type Formatter struct {
	index  *syntax.Index
	logger *slog.Logger
}

// New creates a Formatter backed by index.
func New(index *syntax.Index, opts ...Option) *Formatter {
	f := &Formatter{
		index:  index,
		logger: slog.Default().With(slog.String("component", "format")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format returns the canonical layout of src.
//
// # Description
//
// Runs, in order:
//
//  1. BOM removal, line-ending normalization, one trailing newline.
//  2. Parse. Buffers without a class, or with syntax errors, skip to 7.
//  3. Member spacing over the first class body.
//  4. Re-parse.
//  5. Line-preserving re-indent of the class body.
//  6. Blank-line trims around the class braces.
//  7. Trailing whitespace, blank-line runs, using/namespace separation.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - src: C# source text.
//
// # Outputs
//
//   - string: Formatted source ending in exactly one "\n".
//   - error: Parse failures (size, encoding, cancellation).
func (f *Formatter) Format(ctx context.Context, src string) (string, error) {
	start := time.Now()
	defer func() { formatDuration.Observe(time.Since(start).Seconds()) }()

	text := normalizeText(src)

	tree, err := f.index.ParseString(ctx, text)
	if err != nil {
		return "", fmt.Errorf("parsing for spacing: %w", err)
	}

	mode := "cleanup"
	if class, ok := tree.Class(); ok && !tree.HasErrors() {
		text = normalizeSpacing(text, class)

		tree, err = f.index.ParseString(ctx, text)
		if err != nil {
			return "", fmt.Errorf("parsing for indentation: %w", err)
		}
		if class, ok := tree.Class(); ok && !tree.HasErrors() {
			text = reindentClass(text, class)
			text = trimBlankLines(text, class)
			mode = "structural"
		} else {
			f.logger.Warn("spacing pass produced an unparsable class, skipping indentation")
		}
	}

	formatRunsTotal.WithLabelValues(mode).Inc()
	return cleanup(text), nil
}

// normalizeText strips a BOM, converts CRLF and CR to LF, and ends the
// text with exactly one newline.
func normalizeText(src string) string {
	text := strings.TrimPrefix(src, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimRightFunc(text, unicode.IsSpace) + "\n"
}

// cleanup is the final whole-buffer pass.
func cleanup(text string) string {
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = usingNamespace.ReplaceAllString(text, "${1}\n${2}")
	return strings.TrimRightFunc(text, unicode.IsSpace) + "\n"
}

// normalizeSpacing rewrites the whitespace between the class body's
// declarations. Declaration text is copied unchanged.
func normalizeSpacing(text string, class *syntax.ClassNode) string {
	var b strings.Builder
	b.Grow(len(text) + 64)

	b.WriteString(text[:class.BodyOpen+1])
	prev := class.BodyOpen + 1
	for i, decl := range class.Declarations {
		b.WriteString(spaceGap(text[prev:decl.Start], i == 0))
		b.WriteString(text[decl.Start:decl.End])
		prev = decl.End
	}
	b.WriteString(spaceTail(text[prev:class.BodyClose]))
	b.WriteString(text[class.BodyClose:])

	return b.String()
}

// gapParts splits the text between two declarations.
//
// head is what follows the previous declaration on its own line. body are
// the full lines in between, right-trimmed with blank runs collapsed; a
// non-blank final partial line joins body. prefix is the leading
// whitespace of that final line.
func gapParts(gap string) (head string, body []string, prefix string) {
	lines := strings.Split(gap, "\n")
	head = strings.TrimRight(lines[0], " \t")
	if len(lines) == 1 {
		return head, nil, ""
	}

	last := lines[len(lines)-1]
	prefix = last[:len(last)-len(strings.TrimLeft(last, " \t"))]

	middle := lines[1 : len(lines)-1]
	if strings.TrimSpace(last) != "" {
		middle = append(middle[:len(middle):len(middle)], last)
	}
	for _, line := range middle {
		line = strings.TrimRight(line, " \t")
		if line == "" && len(body) > 0 && body[len(body)-1] == "" {
			continue
		}
		body = append(body, line)
	}
	return head, body, prefix
}

// trimBlank removes leading and trailing empty entries.
func trimBlank(body []string) []string {
	for len(body) > 0 && body[0] == "" {
		body = body[1:]
	}
	for len(body) > 0 && body[len(body)-1] == "" {
		body = body[:len(body)-1]
	}
	return body
}

func joinGap(head string, body []string, prefix string) string {
	var b strings.Builder
	b.WriteString(head)
	b.WriteByte('\n')
	for _, line := range body {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(prefix)
	return b.String()
}

// spaceGap normalizes the gap before a declaration.
//
// Before the first declaration no blank lines remain. Between
// declarations a whitespace-only gap becomes one blank line, and a gap
// holding comments gets one blank line before the comments and none after.
func spaceGap(gap string, first bool) string {
	head, body, prefix := gapParts(gap)
	body = trimBlank(body)
	switch {
	case first:
	case len(body) == 0:
		body = []string{""}
	default:
		body = append([]string{""}, body...)
	}
	return joinGap(head, body, prefix)
}

// spaceTail normalizes the text between the last declaration and the
// closing brace.
func spaceTail(tail string) string {
	head, body, prefix := gapParts(tail)
	return joinGap(head, trimBlank(body), prefix)
}

// reindentClass re-indents the class body. Line count is preserved.
func reindentClass(text string, class *syntax.ClassNode) string {
	memberIndent := class.MemberIndent()

	var b strings.Builder
	b.Grow(len(text) + 256)

	b.WriteString(text[:class.BodyOpen+1])
	prev := class.BodyOpen + 1
	for _, decl := range class.Declarations {
		head, middle, partial, ok := splitGap(text[prev:decl.Start])
		if !ok {
			b.WriteString(text[prev:decl.Start])
			b.WriteString(text[decl.Start:decl.End])
			prev = decl.End
			continue
		}
		b.WriteString(head)
		b.WriteByte('\n')
		for _, line := range middle {
			b.WriteString(indentGapLine(line, memberIndent))
			b.WriteByte('\n')
		}
		b.WriteString(ReindentBlock(partial+text[decl.Start:decl.End], memberIndent))
		prev = decl.End
	}

	tail := text[prev:class.BodyClose]
	if head, middle, _, ok := splitGap(tail); ok {
		b.WriteString(head)
		b.WriteByte('\n')
		for _, line := range middle {
			b.WriteString(indentGapLine(line, memberIndent))
			b.WriteByte('\n')
		}
		b.WriteString(syntax.Spaces(class.Indent))
	} else {
		b.WriteString(tail)
	}
	b.WriteString(text[class.BodyClose:])

	return b.String()
}

// splitGap splits a gap into its head line, full middle lines and the
// partial line in front of the next token. ok is false for a gap without
// a newline.
func splitGap(gap string) (head string, middle []string, partial string, ok bool) {
	lines := strings.Split(gap, "\n")
	if len(lines) < 2 {
		return "", nil, "", false
	}
	return lines[0], lines[1 : len(lines)-1], lines[len(lines)-1], true
}

// indentGapLine places a comment or directive line between declarations.
// Block comment continuation lines ("* ...") align one column in.
func indentGapLine(line string, indent int) string {
	trimmed := strings.TrimLeft(line, " \t")
	if strings.TrimSpace(trimmed) == "" {
		return ""
	}
	if trimmed[0] == '*' {
		return syntax.Spaces(indent+1) + trimmed
	}
	return syntax.Spaces(indent) + trimmed
}

// trimBlankLines drops blank lines around the class braces, using the
// line numbers of the parse that preceded re-indentation.
func trimBlankLines(text string, class *syntax.ClassNode) string {
	lines := strings.Split(text, "\n")
	drop := make(map[int]bool)
	blank := func(i int) bool { return strings.TrimSpace(lines[i]) == "" }

	for i := class.BodyOpenLine + 1; i < class.BodyCloseLine && blank(i); i++ {
		drop[i] = true
	}
	for i := class.BodyCloseLine - 1; i > class.BodyOpenLine && blank(i); i-- {
		drop[i] = true
	}

	// Before the declaration, when it directly follows an opening brace.
	i := class.StartLine - 1
	for i >= 0 && blank(i) {
		i--
	}
	if i >= 0 && strings.HasSuffix(strings.TrimRight(lines[i], " \t"), "{") {
		for j := i + 1; j < class.StartLine; j++ {
			drop[j] = true
		}
	}

	// After the class, when only a closing brace or EOF follows.
	j := class.BodyCloseLine + 1
	for j < len(lines) && blank(j) {
		j++
	}
	if j >= len(lines) || strings.HasPrefix(strings.TrimLeft(lines[j], " \t"), "}") {
		for k := class.BodyCloseLine + 1; k < j && k < len(lines); k++ {
			drop[k] = true
		}
	}

	if len(drop) == 0 {
		return text
	}
	kept := make([]string, 0, len(lines)-len(drop))
	for idx, line := range lines {
		if !drop[idx] {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
