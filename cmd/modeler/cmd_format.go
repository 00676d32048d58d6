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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianModeler/pkg/ux"
	"github.com/AleutianAI/AleutianModeler/services/modeler/format"
	"github.com/AleutianAI/AleutianModeler/services/modeler/syntax"
)

func runFormat(cmd *cobra.Command, args []string) error {
	logger := slog.Default().With(slog.String("component", "format_cmd"))
	f := format.New(syntax.NewIndex(syntax.WithLogger(logger)), format.WithLogger(logger))
	return formatFiles(cmd.Context(), f, args, formatCheck, cmd.OutOrStdout())
}

// formatFiles formats each path in place, or only reports the files that
// would change when check is set.
//
// # Outputs
//
//   - error: An ExitError with exitNeedsFormat when check finds files to
//     format, exitFailure when a file could not be read, parsed or written.
func formatFiles(ctx context.Context, f *format.Formatter, paths []string, check bool, out io.Writer) error {
	var changed, failed int
	for _, path := range paths {
		updated, differs, err := formatFile(ctx, f, path, check)
		switch {
		case err != nil:
			failed++
			ux.FileStatus(out, path, ux.IconError, err.Error())
		case !differs:
			ux.FileStatus(out, path, ux.IconSuccess, "already formatted")
		case check:
			changed++
			ux.FileStatus(out, path, ux.IconWarning, "needs formatting")
		default:
			changed++
			ux.FileStatus(out, path, ux.IconSuccess, fmt.Sprintf("formatted (%d bytes)", len(updated)))
		}
	}

	switch {
	case failed > 0:
		return &ExitError{Code: exitFailure, Wrapped: fmt.Errorf("%d file(s) could not be formatted", failed)}
	case check && changed > 0:
		return &ExitError{Code: exitNeedsFormat, Wrapped: fmt.Errorf("%d file(s) need formatting", changed)}
	}
	return nil
}

func formatFile(ctx context.Context, f *format.Formatter, path string, check bool) (string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	updated, err := f.Format(ctx, string(src))
	if err != nil {
		return "", false, err
	}
	if updated == string(src) {
		return updated, false, nil
	}
	if !check {
		if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
			return "", false, err
		}
	}
	return updated, true, nil
}
