// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import "strings"

// IndentWidth is the canonical indentation step in columns.
const IndentWidth = 4

// LineStart returns the offset of the first byte of the line holding off.
func LineStart(src string, off int) int {
	if off > len(src) {
		off = len(src)
	}
	return strings.LastIndexByte(src[:off], '\n') + 1
}

// LineEnd returns the offset of the '\n' that ends the line holding off,
// or len(src) when the line is the last one.
func LineEnd(src string, off int) int {
	if off >= len(src) {
		return len(src)
	}
	if i := strings.IndexByte(src[off:], '\n'); i >= 0 {
		return off + i
	}
	return len(src)
}

// LeadingWidth returns the visual width of the leading whitespace of line.
// Tabs count as IndentWidth columns.
func LeadingWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += IndentWidth
		default:
			return width
		}
	}
	return width
}

// Spaces returns n spaces, or the empty string for n <= 0.
func Spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}
