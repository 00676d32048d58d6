// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import "errors"

var (
	// ErrNotInitialized is returned when a project has no config file yet.
	ErrNotInitialized = errors.New("modeler config not found, run 'modeler init'")

	// ErrInvalidConfig is returned when a config fails validation.
	ErrInvalidConfig = errors.New("invalid modeler config")

	// ErrUnsupportedVersion is returned for a schema version this build
	// cannot read.
	ErrUnsupportedVersion = errors.New("unsupported config version")
)
