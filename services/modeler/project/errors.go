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

import "errors"

var (
	// ErrNoSolution is returned when src/ holds no .sln file.
	ErrNoSolution = errors.New("no .sln file found under src")

	// ErrLayerNotFound is returned when a required layer directory is missing.
	ErrLayerNotFound = errors.New("layer directory not found")

	// ErrInvalidMetadata wraps struct validation failures.
	ErrInvalidMetadata = errors.New("invalid project metadata")
)
