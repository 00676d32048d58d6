// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
	"github.com/AleutianAI/AleutianModeler/services/modeler/syntax"
)

// metadataValidate is the validator instance for Metadata.
var metadataValidate = validator.New()

// Layer directory names under src/{ProjectName}.
const (
	LayerDomain         = "Domain"
	LayerApplication    = "Application"
	LayerInfrastructure = "Infrastructure"
	LayerInterchange    = "Interchange"
)

const (
	// DefaultPersistence is used when no appsettings file names one.
	DefaultPersistence = intent.PersistenceOpenDDD

	// DefaultDatabase is used when no appsettings file names one.
	DefaultDatabase = intent.DatabasePostgres
)

// appsettingsPriority lists settings files in lookup order.
var appsettingsPriority = []string{
	"appsettings.Development.json",
	"appsettings.Production.json",
	"appsettings.json",
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"bin": true, "obj": true, ".git": true, ".vs": true, ".idea": true,
	"node_modules": true, ".modeler": true,
}

// Option configures an FSScanner.
type Option func(*FSScanner)

// WithIndex sets the syntax index used for classification.
func WithIndex(index *syntax.Index) Option {
	return func(s *FSScanner) {
		if index != nil {
			s.index = index
		}
	}
}

// WithParallelism bounds the number of files parsed at once.
func WithParallelism(n int) Option {
	return func(s *FSScanner) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithLogger sets the scanner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FSScanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// FSScanner implements Scanner over the local file system.
//
// # Thread Safety
//
// FSScanner holds no mutable state and is safe for concurrent use.
type FSScanner struct {
	root        string
	index       *syntax.Index
	parallelism int
	logger      *slog.Logger
}

// NewFSScanner creates a scanner rooted at the directory holding src/.
func NewFSScanner(root string, opts ...Option) *FSScanner {
	s := &FSScanner{
		root:        root,
		parallelism: 8,
		logger:      slog.Default().With(slog.String("component", "project")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.index == nil {
		s.index = syntax.NewIndex(syntax.WithLogger(s.logger))
	}
	return s
}

// Metadata locates the solution and its layers.
//
// # Description
//
// The first src/*.sln (lexical order) names the project; its stem is also
// the root namespace. Domain, Application and Infrastructure layers are
// required at src/{Name}/{Layer}; Interchange is optional.
//
// # Outputs
//
//   - Metadata: Paths are project-relative with forward slashes.
//   - error: ErrNoSolution, ErrLayerNotFound, ErrInvalidMetadata.
func (s *FSScanner) Metadata(ctx context.Context) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return Metadata{}, fmt.Errorf("resolving project root: %w", err)
	}
	srcDir := filepath.Join(root, "src")

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrNoSolution, err)
	}
	var name string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sln") {
			name = strings.TrimSuffix(e.Name(), ".sln")
			break
		}
	}
	if name == "" {
		return Metadata{}, ErrNoSolution
	}

	md := Metadata{
		ProjectName:   name,
		RootNamespace: name,
		ProjectRoot:   root,
		SourcePath:    "src",
	}

	layers := []struct {
		name     string
		dst      *string
		required bool
	}{
		{LayerDomain, &md.DomainPath, true},
		{LayerApplication, &md.ApplicationPath, true},
		{LayerInfrastructure, &md.InfrastructurePath, true},
		{LayerInterchange, &md.InterchangePath, false},
	}
	for _, l := range layers {
		rel := path.Join("src", name, l.name)
		if isDir(filepath.Join(root, filepath.FromSlash(rel))) {
			*l.dst = rel
			continue
		}
		if l.required {
			return Metadata{}, fmt.Errorf("%w: %s", ErrLayerNotFound, rel)
		}
		s.logger.Debug("optional layer missing", slog.String("layer", l.name))
	}

	md.TestsPath = s.testsPath(root, name)
	md.PersistenceProvider, md.DatabaseProvider = s.providers(root, name, entries)

	if err := metadataValidate.Struct(md); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	s.logger.Info("project metadata extracted",
		slog.String("project", md.ProjectName),
		slog.String("persistence", md.PersistenceProvider),
		slog.String("database", md.DatabaseProvider))
	return md, nil
}

// testsPath prefers src/{Name}.Tests, then the directory of the first
// test project file, then src/Tests.
func (s *FSScanner) testsPath(root, name string) string {
	conventional := path.Join("src", name+".Tests")
	if isDir(filepath.Join(root, filepath.FromSlash(conventional))) {
		return conventional
	}

	found := ""
	srcDir := filepath.Join(root, "src")
	_ = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		base := strings.ToLower(d.Name())
		if strings.HasSuffix(base, ".csproj") && strings.Contains(base, "test") {
			if rel, err := filepath.Rel(root, filepath.Dir(p)); err == nil {
				found = filepath.ToSlash(rel)
				return filepath.SkipAll
			}
		}
		return nil
	})
	if found != "" {
		return found
	}
	return "src/Tests"
}

// appsettings mirrors the keys read from appsettings*.json.
type appsettings struct {
	OpenDDD struct {
		PersistenceProvider string `json:"PersistenceProvider"`
		DatabaseProvider    string `json:"DatabaseProvider"`
	} `json:"OpenDDD"`
}

// providers reads persistence settings from the highest-priority
// appsettings file in a non-test project directory.
func (s *FSScanner) providers(root, name string, srcEntries []os.DirEntry) (string, string) {
	prefix := strings.ToLower(name)
	var dirs []string
	for _, e := range srcEntries {
		lower := strings.ToLower(e.Name())
		if e.IsDir() && strings.HasPrefix(lower, prefix) && !strings.Contains(lower, "test") {
			dirs = append(dirs, filepath.Join(root, "src", e.Name()))
		}
	}

	for _, file := range appsettingsPriority {
		for _, dir := range dirs {
			p := filepath.Join(dir, file)
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			var settings appsettings
			if err := json.Unmarshal(data, &settings); err != nil {
				s.logger.Warn("unreadable appsettings file",
					slog.String("path", p),
					slog.String("error", err.Error()))
				continue
			}
			persistence := settings.OpenDDD.PersistenceProvider
			if persistence == "" {
				persistence = DefaultPersistence
			}
			database := settings.OpenDDD.DatabaseProvider
			if database == "" {
				database = DefaultDatabase
			}
			return persistence, database
		}
	}
	return DefaultPersistence, DefaultDatabase
}

// KnownPaths returns every file under the source directory, relative to
// the project root.
func (s *FSScanner) KnownPaths(ctx context.Context, md Metadata) (map[string]struct{}, error) {
	known := make(map[string]struct{})
	srcDir := filepath.Join(md.ProjectRoot, filepath.FromSlash(md.SourcePath))

	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != srcDir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(md.ProjectRoot, p)
		if err != nil {
			return nil
		}
		known[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", md.SourcePath, err)
	}
	return known, nil
}

// RelevantSources returns the content of the files of the blocks the
// intents target.
//
// # Description
//
// An intent matches a block when the block type (explicit, or inferred
// from the intent kind) and the target name agree. Repository blocks also
// match the I{Target}Repository interface name. Unreadable files are
// skipped with a warning.
func (s *FSScanner) RelevantSources(ctx context.Context, md Metadata, intents []intent.Intent, blocks []BuildingBlock) (map[string]string, error) {
	sources := make(map[string]string)
	for _, in := range intents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !in.Kind.IsActionable() || in.Target == "" {
			continue
		}
		want := BlockTypeFor(in)
		for _, b := range blocks {
			if b.Type != want || !matchesTarget(b, in.Target) {
				continue
			}
			if _, done := sources[b.FilePath]; done {
				continue
			}
			data, err := os.ReadFile(filepath.Join(md.ProjectRoot, filepath.FromSlash(b.FilePath)))
			if err != nil {
				s.logger.Warn("relevant source unreadable",
					slog.String("path", b.FilePath),
					slog.String("error", err.Error()))
				continue
			}
			sources[b.FilePath] = string(data)
		}
	}
	return sources, nil
}

func matchesTarget(b BuildingBlock, target string) bool {
	if b.Name == target {
		return true
	}
	return b.Type == Repository && b.Name == "I"+target+"Repository"
}

// BlockTypeFor resolves the block type an intent refers to.
func BlockTypeFor(in intent.Intent) BlockType {
	explicit := strings.ToLower(strings.TrimSpace(in.BuildingBlockType))
	explicit = strings.NewReplacer(" ", "_", "-", "_").Replace(explicit)
	switch explicit {
	case "":
	case "aggregate", "aggregateroot":
		return AggregateRoot
	case "valueobject":
		return ValueObject
	default:
		return BlockType(explicit)
	}

	kind := string(in.Kind.Normalize())
	switch {
	case strings.Contains(kind, "repository"):
		return Repository
	case strings.Contains(kind, "value_object"):
		return ValueObject
	case strings.Contains(kind, "aggregate"):
		return AggregateRoot
	default:
		return ""
	}
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// errSkipFile marks a file that cannot be classified.
var errSkipFile = errors.New("file skipped")

// sortBlocks orders blocks by type then name.
func sortBlocks(blocks []BuildingBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Type != blocks[j].Type {
			return blocks[i].Type < blocks[j].Type
		}
		return blocks[i].Name < blocks[j].Name
	})
}
