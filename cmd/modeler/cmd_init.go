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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianModeler/pkg/ux"
	"github.com/AleutianAI/AleutianModeler/services/modeler/config"
	"github.com/AleutianAI/AleutianModeler/services/modeler/project"
)

const gitignore = "sessions/\nlogs/\n"

func runInit(cmd *cobra.Command, args []string) error {
	return initProject(cmd.Context(), projectRoot, cmd.OutOrStdout())
}

// initProject writes the default config and checks that root looks like
// a solution the modeler can work on.
func initProject(ctx context.Context, root string, out io.Writer) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	_, created, err := config.Init(abs)
	if err != nil {
		return err
	}
	if created {
		ux.Success(out, "Created "+config.Path(abs))
	} else {
		ux.Info(out, "Config already exists at "+config.Path(abs))
	}

	ignore := filepath.Join(abs, config.Dir, ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(ignore, []byte(gitignore), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", ignore, err)
		}
	}

	md, err := project.NewFSScanner(abs).Metadata(ctx)
	switch {
	case errors.Is(err, project.ErrNoSolution):
		ux.Warning(out, "No src/*.sln found. Run modeler from the solution root or pass --root.")
	case err != nil:
		ux.Warning(out, "The solution layout was not recognized: "+err.Error())
	default:
		ux.Info(out, fmt.Sprintf("Found %s (persistence %s, database %s)",
			md.ProjectName, orUnknown(md.PersistenceProvider), orUnknown(md.DatabaseProvider)))
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
