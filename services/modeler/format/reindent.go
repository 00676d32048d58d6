// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package format

import (
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/modeler/syntax"
)

// ReindentBlock re-indents a member declaration so its first line sits at
// column indent and each brace level adds syntax.IndentWidth.
//
// # Description
//
// The block's own first-line indentation is the base. Lines that start a
// statement (first line, lines opening or closing a brace, and lines
// following a line that ends in '{', '}', ';' or ']') are placed at
// indent + IndentWidth*depth. Continuation lines keep whatever they were
// indented past that column relative to the base, so wrapped parameter
// lists and constructor initializers survive. Blank lines become empty.
//
// The line count never changes.
//
// # Inputs
//
//   - block: Declaration text, possibly with leading whitespace on line one.
//   - indent: Target column of the declaration's first line.
//
// # Outputs
//
//   - string: Re-indented text. Trailing whitespace is left to the caller.
//
// # Limitations
//
// Multi-line verbatim and raw string literals are re-indented like code.
func ReindentBlock(block string, indent int) string {
	lines := strings.Split(block, "\n")
	base := syntax.LeadingWidth(lines[0])

	var sc braceScanner
	depth := 0
	continuation := false

	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			lines[i] = ""
			continue
		}

		d := depth
		if trimmed[0] == '}' {
			d--
		}
		if d < 0 {
			d = 0
		}

		width := indent + syntax.IndentWidth*d
		if continuation && trimmed[0] != '{' && trimmed[0] != '}' {
			if extra := syntax.LeadingWidth(line) - base - syntax.IndentWidth*d; extra > 0 {
				width += extra
			}
		}
		lines[i] = syntax.Spaces(width) + trimmed

		delta, last := sc.scan(trimmed)
		depth += delta
		continuation = sc.inBlockComment || sc.inVerbatim || !endsStatement(last)
	}

	return strings.Join(lines, "\n")
}

// endsStatement reports whether a line whose last code byte is last leaves
// the next line at statement start.
func endsStatement(last byte) bool {
	switch last {
	case 0, '{', '}', ';', ']':
		return true
	}
	return false
}

// braceScanner counts code braces line by line.
//
// Strings, character literals and comments are skipped. Block comments and
// verbatim strings may span lines, so that state carries over between
// scan calls.
type braceScanner struct {
	inBlockComment bool
	inVerbatim     bool
}

// scan returns the brace balance of line and its last code byte (0 when
// the line holds no code).
func (s *braceScanner) scan(line string) (delta int, last byte) {
	for i := 0; i < len(line); i++ {
		c := line[i]

		if s.inBlockComment {
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				s.inBlockComment = false
				i++
			}
			continue
		}
		if s.inVerbatim {
			if c == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					i++
					continue
				}
				s.inVerbatim = false
				last = '"'
			}
			continue
		}

		switch c {
		case ' ', '\t':
		case '/':
			if i+1 < len(line) && line[i+1] == '/' {
				return delta, last
			}
			if i+1 < len(line) && line[i+1] == '*' {
				s.inBlockComment = true
				i++
				continue
			}
			last = c
		case '@', '$':
			j := i
			verbatim := false
			for j < len(line) && (line[j] == '@' || line[j] == '$') {
				if line[j] == '@' {
					verbatim = true
				}
				j++
			}
			if j < len(line) && line[j] == '"' {
				if verbatim {
					s.inVerbatim = true
					i = j
					continue
				}
				i = skipQuoted(line, j, '"')
				last = '"'
				continue
			}
			last = c
		case '"':
			i = skipQuoted(line, i, '"')
			last = '"'
		case '\'':
			i = skipQuoted(line, i, '\'')
			last = '\''
		case '{':
			delta++
			last = c
		case '}':
			delta--
			last = c
		default:
			last = c
		}
	}
	return delta, last
}

// skipQuoted returns the offset of the quote closing the literal that
// opens at line[start], or the last offset when it is unterminated.
func skipQuoted(line string, start int, quote byte) int {
	for j := start + 1; j < len(line); j++ {
		switch line[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return len(line) - 1
}
