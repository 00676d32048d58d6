// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package staging

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPath is returned for paths that are absolute or escape the
	// project root.
	ErrInvalidPath = errors.New("path must be relative and inside the project")

	// ErrNotStaged is returned when reading a path that was never staged.
	ErrNotStaged = errors.New("path not staged")

	// ErrTransactionActive is returned by Begin while another transaction
	// has not finished.
	ErrTransactionActive = errors.New("a transaction is already active")

	// ErrTransactionDone is returned when committing or rolling back a
	// transaction that already finished.
	ErrTransactionDone = errors.New("transaction already finished")

	// ErrPartialApply is returned when a rollback could not restore every
	// path. The project is left in a mixed state.
	ErrPartialApply = errors.New("partial apply: rollback incomplete")
)

// CommitError describes a failed commit.
//
// Err is the failure that aborted the commit. Unrestored lists the paths
// the rollback could not restore; when it is non-empty the error also
// matches ErrPartialApply.
type CommitError struct {
	TxID       string
	Op         string
	Path       string
	Err        error
	Unrestored []string
}

func (e *CommitError) Error() string {
	msg := fmt.Sprintf("commit %s: %s %s: %v", e.TxID, e.Op, e.Path, e.Err)
	if len(e.Unrestored) > 0 {
		msg += fmt.Sprintf("; %v: %s", ErrPartialApply, strings.Join(e.Unrestored, ", "))
	}
	return msg
}

// Unwrap exposes the cause and, for partial applies, ErrPartialApply.
func (e *CommitError) Unwrap() []error {
	if len(e.Unrestored) > 0 {
		return []error{e.Err, ErrPartialApply}
	}
	return []error{e.Err}
}
