// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package preview compares generated files against the project on disk
// and renders the result for review before approval.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/AleutianModeler/services/modeler/mutate"
	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
)

// DefaultContextLines is the number of unchanged lines around each hunk.
const DefaultContextLines = 3

// Status classifies one generated file.
type Status string

const (
	StatusCreated   Status = "created"
	StatusModified  Status = "modified"
	StatusUnchanged Status = "unchanged"
)

// FileChange is the diff of one generated file against disk.
type FileChange struct {
	Path    string
	Status  Status
	Added   int
	Removed int

	// Diff is a unified diff, empty when unchanged.
	Diff string
}

// Summary is everything shown to the approver.
type Summary struct {
	Files     []FileChange
	Deletions plan.Steps
	Warnings  []string
	Errors    []mutate.FileError
}

// Changed returns the files whose content differs from disk.
func (s *Summary) Changed() []FileChange {
	var out []FileChange
	for _, f := range s.Files {
		if f.Status != StatusUnchanged {
			out = append(out, f)
		}
	}
	return out
}

// HasChanges reports whether applying would touch the project.
func (s *Summary) HasChanges() bool {
	return len(s.Changed()) > 0 || len(s.Deletions) > 0
}

// Stats returns the total added and removed line counts.
func (s *Summary) Stats() (added, removed int) {
	for _, f := range s.Files {
		added += f.Added
		removed += f.Removed
	}
	return added, removed
}

// Option configures a Builder.
type Option func(*Builder)

// WithContextLines sets the hunk context size.
func WithContextLines(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.context = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Builder produces Summaries for one project.
//
// # Thread Safety
//
// Safe for concurrent use.
type Builder struct {
	projectRoot string
	context     int
	logger      *slog.Logger
}

// NewBuilder creates a Builder for projectRoot.
func NewBuilder(projectRoot string, opts ...Option) *Builder {
	b := &Builder{
		projectRoot: projectRoot,
		context:     DefaultContextLines,
		logger:      slog.Default().With(slog.String("component", "preview")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build diffs every generated file against its on-disk version.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - files: Generated files with project-relative paths.
//   - steps: The plan. Only its destructive steps are kept.
//   - warnings: Planning and generation warnings, shown verbatim.
//   - errs: Per-file generation failures.
//
// # Outputs
//
//   - *Summary: The preview.
//   - error: A read error other than a missing file, or ctx.Err().
func (b *Builder) Build(ctx context.Context, files []mutate.GeneratedFile, steps plan.Steps, warnings []string, errs []mutate.FileError) (*Summary, error) {
	s := &Summary{
		Deletions: steps.Deletions(),
		Warnings:  warnings,
		Errors:    errs,
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		change, err := b.diffFile(f)
		if err != nil {
			return nil, err
		}
		s.Files = append(s.Files, change)
	}

	added, removed := s.Stats()
	b.logger.Debug("preview built",
		slog.Int("files", len(s.Files)),
		slog.Int("deletions", len(s.Deletions)),
		slog.Int("added", added),
		slog.Int("removed", removed))
	return s, nil
}

func (b *Builder) diffFile(f mutate.GeneratedFile) (FileChange, error) {
	change := FileChange{Path: f.Path, Status: StatusModified}

	old, err := os.ReadFile(filepath.Join(b.projectRoot, filepath.FromSlash(f.Path)))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		change.Status = StatusCreated
	case err != nil:
		return FileChange{}, fmt.Errorf("reading %s: %w", f.Path, err)
	case string(old) == f.Content:
		change.Status = StatusUnchanged
		return change, nil
	}

	text, err := UnifiedDiff(f.Path, string(old), f.Content, change.Status == StatusCreated, b.context)
	if err != nil {
		return FileChange{}, fmt.Errorf("diffing %s: %w", f.Path, err)
	}
	added, removed, err := CountChanges(text)
	if err != nil {
		return FileChange{}, fmt.Errorf("parsing diff of %s: %w", f.Path, err)
	}
	change.Diff = text
	change.Added = added
	change.Removed = removed
	return change, nil
}

// UnifiedDiff returns a unified diff from old to updated. A created file
// is diffed against /dev/null.
func UnifiedDiff(path, old, updated string, created bool, context int) (string, error) {
	ud := difflib.UnifiedDiff{
		B:        splitLines(updated),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  context,
	}
	if created {
		ud.FromFile = "/dev/null"
	} else {
		ud.A = splitLines(old)
	}
	return difflib.GetUnifiedDiffString(ud)
}

// splitLines splits s into lines that keep their "\n". A missing final
// newline is added so that the last line compares equal either way.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}

// CountChanges parses a unified diff and counts added and removed lines
// across its hunks.
func CountChanges(unified string) (added, removed int, err error) {
	if unified == "" {
		return 0, 0, nil
	}
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(unified)).ReadAllFiles()
	if err != nil {
		return 0, 0, err
	}
	for _, fd := range fileDiffs {
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					added++
				case strings.HasPrefix(line, "-"):
					removed++
				}
			}
		}
	}
	return added, removed, nil
}
