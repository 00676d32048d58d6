// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import "errors"

var (
	// ErrInvalidTransition is returned for a transition outside the graph.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNoPhase is returned when a state has no registered phase.
	ErrNoPhase = errors.New("no phase registered for state")

	// ErrRevisionLimit is returned when a cycle asks for more revisions
	// than allowed.
	ErrRevisionLimit = errors.New("revision limit exceeded")

	// ErrCanceled is returned when the context ends mid-cycle.
	ErrCanceled = errors.New("workflow canceled")

	// ErrTimeout is returned when a cycle runs past its total timeout.
	ErrTimeout = errors.New("workflow timed out")

	// ErrTooManySteps is returned when a cycle does not reach Done within
	// its step bound.
	ErrTooManySteps = errors.New("workflow exceeded its step bound")

	// ErrNilCycle is returned by Run for a nil cycle.
	ErrNilCycle = errors.New("cycle must not be nil")
)
