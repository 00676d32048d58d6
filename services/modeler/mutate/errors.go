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
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound is returned when a modified file exists neither on
	// disk nor among the files created in the same batch.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrUnsupportedModification is returned for an unknown modification kind.
	ErrUnsupportedModification = errors.New("unsupported modification")

	// ErrMissingDescriptor is returned when a modification lacks the method
	// or property descriptor it needs.
	ErrMissingDescriptor = errors.New("missing member descriptor")

	// ErrPathOutsideProject is returned for a step path that resolves
	// outside the project root.
	ErrPathOutsideProject = errors.New("path outside project root")
)

// FileError records a generation failure for one file.
//
// Failures are isolated per file: sibling files in the same batch still
// generate.
type FileError struct {
	Path string
	Err  error
}

// Error implements error.
func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e FileError) Unwrap() error {
	return e.Err
}
