// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mutate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
)

// DefaultParallelism is the default number of files generated at once.
const DefaultParallelism = 4

// GeneratedFile is the full, formatted content of one target file.
type GeneratedFile struct {
	// Path is relative to the project root, slash-separated.
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Batch is the outcome of generating one plan.
type Batch struct {
	// Files holds one entry per successfully generated path, created
	// files first in plan order, then modified files in first-appearance
	// order.
	Files []GeneratedFile

	// Errors holds one entry per failed path.
	Errors []FileError

	// Warnings are non-fatal placement notes.
	Warnings []string
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithParallelism bounds how many files are generated concurrently.
// Values below one are ignored.
func WithParallelism(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.parallelism = n
		}
	}
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Generator turns a plan into file contents.
//
// # Thread Safety
//
// Safe for concurrent use. Each Generate call owns its batch.
type Generator struct {
	engine      *Engine
	parallelism int
	logger      *slog.Logger
}

// NewGenerator creates a Generator on top of engine.
func NewGenerator(engine *Engine, opts ...GeneratorOption) *Generator {
	g := &Generator{
		engine:      engine,
		parallelism: DefaultParallelism,
		logger:      slog.Default().With(slog.String("component", "generator")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// fileUnit is all the work for one target path.
type fileUnit struct {
	rel    string
	create *plan.CreateFile
	mods   []plan.ModifyFile
}

type unitResult struct {
	file     *GeneratedFile
	err      error
	warnings []string
}

// Generate renders and applies steps under projectRoot.
//
// # Description
//
// Steps are grouped per target path. A path's CreateFile renders first
// and its content becomes the starting buffer for the path's ModifyFile
// steps, which apply sequentially in plan order. Paths without a
// CreateFile start from the file on disk. Paths run in parallel, bounded
// by the configured parallelism. Delete steps are not generated; they are
// executed at apply time.
//
// A failure is recorded as a FileError for its path only.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - steps: The plan.
//   - projectRoot: Directory that relative step paths resolve against.
//
// # Outputs
//
//   - *Batch: Generated files, per-file errors, warnings. Never nil on success.
//   - error: Non-nil only when ctx is done.
func (g *Generator) Generate(ctx context.Context, steps []plan.Step, projectRoot string) (*Batch, error) {
	start := time.Now()
	defer func() { generateDuration.Observe(time.Since(start).Seconds()) }()

	units, invalid := groupSteps(steps, projectRoot)
	batch := &Batch{Errors: invalid}

	results := make([]unitResult, len(units))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelism)

	for i := range units {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = g.generateUnit(egCtx, units[i], projectRoot)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("generation canceled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generation canceled: %w", err)
	}

	for i, res := range results {
		batch.Warnings = append(batch.Warnings, res.warnings...)
		if res.err != nil {
			generatedFilesTotal.WithLabelValues("error").Inc()
			g.logger.Warn("file generation failed",
				slog.String("path", units[i].rel),
				slog.String("error", res.err.Error()))
			batch.Errors = append(batch.Errors, FileError{Path: units[i].rel, Err: res.err})
			continue
		}
		generatedFilesTotal.WithLabelValues("ok").Inc()
		batch.Files = append(batch.Files, *res.file)
	}

	g.logger.Info("generation complete",
		slog.Int("files", len(batch.Files)),
		slog.Int("errors", len(batch.Errors)),
		slog.Int("warnings", len(batch.Warnings)))

	return batch, nil
}

func (g *Generator) generateUnit(ctx context.Context, u fileUnit, projectRoot string) unitResult {
	var buf string
	if u.create != nil {
		content, err := g.engine.CreateFile(ctx, *u.create)
		if err != nil {
			return unitResult{err: err}
		}
		buf = content
	} else {
		raw, err := os.ReadFile(filepath.Join(projectRoot, filepath.FromSlash(u.rel)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return unitResult{err: fmt.Errorf("%w: %s", ErrSourceNotFound, u.rel)}
			}
			return unitResult{err: fmt.Errorf("reading %s: %w", u.rel, err)}
		}
		buf = string(raw)
	}

	if len(u.mods) == 0 {
		return unitResult{file: &GeneratedFile{Path: u.rel, Content: buf}}
	}

	content, warnings, err := g.engine.ApplyModifications(ctx, u.rel, buf, u.mods)
	if err != nil {
		return unitResult{err: err, warnings: warnings}
	}
	return unitResult{file: &GeneratedFile{Path: u.rel, Content: content}, warnings: warnings}
}

// groupSteps builds the per-path work list. Created paths come first in
// plan order, then modify-only paths in first-appearance order.
func groupSteps(steps []plan.Step, projectRoot string) ([]fileUnit, []FileError) {
	var (
		units   []*fileUnit
		byPath  = make(map[string]*fileUnit)
		invalid []FileError
	)

	unitFor := func(rel string) *fileUnit {
		if u, ok := byPath[rel]; ok {
			return u
		}
		u := &fileUnit{rel: rel}
		byPath[rel] = u
		units = append(units, u)
		return u
	}

	for _, step := range steps {
		switch s := step.(type) {
		case plan.CreateFile:
			rel, err := RelativePath(projectRoot, s.Path())
			if err != nil {
				invalid = append(invalid, FileError{Path: s.Path(), Err: err})
				continue
			}
			sc := s
			unitFor(rel).create = &sc
		case plan.ModifyFile:
			rel, err := RelativePath(projectRoot, s.Path())
			if err != nil {
				invalid = append(invalid, FileError{Path: s.Path(), Err: err})
				continue
			}
			u := unitFor(rel)
			u.mods = append(u.mods, s)
		}
	}

	ordered := make([]fileUnit, 0, len(units))
	for _, u := range units {
		if u.create != nil {
			ordered = append(ordered, *u)
		}
	}
	for _, u := range units {
		if u.create == nil {
			ordered = append(ordered, *u)
		}
	}
	return ordered, invalid
}

// RelativePath converts a step path into a clean slash-separated path
// relative to projectRoot. Absolute paths must lie under projectRoot.
func RelativePath(projectRoot, path string) (string, error) {
	p := filepath.FromSlash(path)
	if filepath.IsAbs(p) {
		root, err := filepath.Abs(projectRoot)
		if err != nil {
			return "", fmt.Errorf("resolving project root: %w", err)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrPathOutsideProject, path)
		}
		p = rel
	}

	p = filepath.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideProject, path)
	}
	return filepath.ToSlash(p), nil
}
