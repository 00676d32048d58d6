// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package preview

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/AleutianModeler/pkg/ux"
)

// Render writes the preview: one panel per changed file, one per deleted
// path, then generation errors and warnings.
func Render(w io.Writer, s *Summary) {
	changed := s.Changed()
	added, removed := s.Stats()

	ux.Title(w, "Proposed changes")
	ux.Info(w, fmt.Sprintf("%d file(s) changed, %d deletion(s), %s",
		len(changed), len(s.Deletions), ux.DiffStat(added, removed)))

	for _, f := range changed {
		title := fmt.Sprintf("%s %s (%s)", f.Path, ux.DiffStat(f.Added, f.Removed), f.Status)
		ux.Panel(w, ux.PanelInfo, title, ux.ColorizeDiff(strings.TrimRight(f.Diff, "\n")))
	}

	for _, step := range s.Deletions {
		title := fmt.Sprintf("%s (%s)", step.Path(), step.Type())
		ux.Panel(w, ux.PanelError, title, step.Description())
	}

	if len(s.Errors) > 0 {
		var b strings.Builder
		for _, fe := range s.Errors {
			fmt.Fprintf(&b, "❌ %s\n", fe.Error())
		}
		ux.Panel(w, ux.PanelError, "Generation errors", b.String())
	}

	if len(s.Warnings) > 0 {
		ux.Panel(w, ux.PanelWarning, "Warnings", strings.Join(s.Warnings, "\n"))
	}

	if !s.HasChanges() {
		ux.Warning(w, "No changes to apply.")
	}
}
