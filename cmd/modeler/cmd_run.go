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
	"strings"

	"github.com/spf13/cobra"
)

func runRequest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, projectRoot, appOptions{
		out:      cmd.OutOrStdout(),
		progress: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	s, _, err := a.sessions.Active(ctx)
	if err != nil {
		return err
	}
	res, err := a.runCycle(ctx, s, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.printResult(res)
	if res.Err != nil {
		return &ExitError{Code: exitCycleFailed, Wrapped: res.Err, Reported: true}
	}
	return nil
}
