// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/AleutianModeler/pkg/ux"
)

// Exit codes.
const (
	exitFailure     = 1
	exitCycleFailed = 2
	exitNeedsFormat = 3
)

// ExitError carries the process exit code of a failed command.
//
// # Example
//
//	return &ExitError{Code: exitNeedsFormat, Wrapped: fmt.Errorf("%d file(s) need formatting", n)}
type ExitError struct {
	// Code is the process exit code.
	Code int

	// Wrapped is the underlying error.
	Wrapped error

	// Reported is set when the error was already shown to the user.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("exit %d: %v", e.Code, e.Wrapped)
	}
	return fmt.Sprintf("exit %d", e.Code)
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Wrapped
}

// exitCode reports err and returns the code the process should exit with.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if !exitErr.Reported && exitErr.Wrapped != nil {
			ux.Error(os.Stderr, exitErr.Wrapped.Error())
		}
		return exitErr.Code
	}
	ux.Error(os.Stderr, err.Error())
	return exitFailure
}
