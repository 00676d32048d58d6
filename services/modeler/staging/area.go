// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package staging holds generated buffers outside the project and applies
// them to the project as one transaction.
//
// An Area mirrors the project layout under a session directory. A
// Committer moves staged files into place with backups, so a failed apply
// can be rolled back to the exact pre-apply state.
package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// tempSuffix marks in-flight writes.
const tempSuffix = ".modeler-tmp"

// StagedSet is a read-only view of staged files.
type StagedSet interface {
	// Paths returns the staged project-relative paths, sorted.
	Paths() ([]string, error)

	// Read returns the staged content of rel.
	Read(rel string) (string, error)
}

// Area is a directory of fully formatted buffers keyed by project-relative
// path.
//
// # Description
//
// Every Stage call writes a temp file next to the destination and renames
// it into place, so a path is either fully staged or absent.
//
// # Thread Safety
//
// Area is safe for concurrent use.
type Area struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewArea creates the staging directory if needed.
func NewArea(dir string, logger *slog.Logger) (*Area, error) {
	if logger == nil {
		logger = slog.Default().With(slog.String("component", "staging"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}
	return &Area{dir: dir, logger: logger}, nil
}

// Dir returns the staging directory.
func (a *Area) Dir() string {
	return a.dir
}

// Reset removes every staged file.
func (a *Area) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("clearing staging area: %w", err)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("recreating staging area: %w", err)
	}
	return nil
}

// Stage writes content for rel.
func (a *Area) Stage(rel, content string) error {
	target, err := localPath(a.dir, rel)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := writeAtomic(target, []byte(content)); err != nil {
		return fmt.Errorf("staging %s: %w", rel, err)
	}
	a.logger.Debug("file staged", slog.String("path", rel), slog.Int("bytes", len(content)))
	return nil
}

// Read returns the staged content of rel.
func (a *Area) Read(rel string) (string, error) {
	target, err := localPath(a.dir, rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotStaged, rel)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Paths returns every staged path, sorted, with forward slashes.
func (a *Area) Paths() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var paths []string
	err := filepath.WalkDir(a.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) == tempSuffix {
			return nil
		}
		rel, err := filepath.Rel(a.dir, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing staging area: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// localPath joins rel under root after checking it stays inside.
func localPath(root, rel string) (string, error) {
	native := filepath.FromSlash(rel)
	if rel == "" || !filepath.IsLocal(native) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return filepath.Join(root, native), nil
}

// writeAtomic writes data to a temp file next to target and renames it.
func writeAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp := target + tempSuffix
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
