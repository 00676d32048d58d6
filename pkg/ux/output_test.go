// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// withPersonality sets level for the duration of the test.
func withPersonality(t *testing.T, level PersonalityLevel) {
	t.Helper()
	old := GetPersonality()
	SetPersonality(level)
	t.Cleanup(func() { SetPersonality(old) })
}

func TestParsePersonalityLevel(t *testing.T) {
	tests := map[string]PersonalityLevel{
		"full":    PersonalityFull,
		"MINIMAL": PersonalityMinimal,
		"m":       PersonalityMinimal,
		"machine": PersonalityMachine,
		"quiet":   PersonalityMachine,
		"other":   PersonalityFull,
	}
	for in, want := range tests {
		if got := ParsePersonalityLevel(in); got != want {
			t.Errorf("ParsePersonalityLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitPersonality_Env(t *testing.T) {
	withPersonality(t, PersonalityFull)
	t.Setenv(PersonalityEnv, "minimal")
	InitPersonality()
	if got := GetPersonality(); got != PersonalityMinimal {
		t.Errorf("GetPersonality() = %q, want minimal", got)
	}
}

func TestMachineOutput(t *testing.T) {
	withPersonality(t, PersonalityMachine)
	var buf bytes.Buffer

	Title(&buf, "Preview")
	Success(&buf, "applied")
	Warning(&buf, "careful")
	Error(&buf, "failed")
	Info(&buf, "note")
	FileStatus(&buf, "src/A.cs", IconSuccess, "created")

	want := "OK: applied\nWARN: careful\nERROR: failed\nnote\n✓\tsrc/A.cs\tcreated\n"
	if buf.String() != want {
		t.Errorf("machine output =\n%q\nwant\n%q", buf.String(), want)
	}
	if got := DiffStat(3, 1); got != "+3 -1" {
		t.Errorf("DiffStat = %q", got)
	}
	diff := "--- a\n+++ b\n@@ -1 +1 @@\n-x\n+y"
	if got := ColorizeDiff(diff); got != diff {
		t.Errorf("ColorizeDiff changed machine output: %q", got)
	}
}

func TestPanel(t *testing.T) {
	t.Run("machine", func(t *testing.T) {
		withPersonality(t, PersonalityMachine)
		var buf bytes.Buffer
		Panel(&buf, PanelWarning, "Warnings", "one\ntwo\n")
		if buf.String() != "== Warnings ==\none\ntwo\n" {
			t.Errorf("panel = %q", buf.String())
		}
	})

	t.Run("full", func(t *testing.T) {
		withPersonality(t, PersonalityFull)
		var buf bytes.Buffer
		Panel(&buf, PanelInfo, "src/A.cs (+1 -0)", "+line")
		out := buf.String()
		if !strings.Contains(out, "src/A.cs (+1 -0)") || !strings.Contains(out, "+line") {
			t.Errorf("panel missing content: %q", out)
		}
		if !strings.Contains(out, "╭") {
			t.Errorf("panel has no rounded border: %q", out)
		}
	})
}

func TestIconRender(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render() of %q lost the glyph", icon)
		}
	}
}

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	t.Run("machine", func(t *testing.T) {
		withPersonality(t, PersonalityMachine)
		var buf syncBuffer
		s := NewSpinner(&buf, "Planning")
		s.Start()
		s.Start()
		s.Update("Generating")
		s.Update("Generating")
		s.Stop()
		s.Stop()
		if got := buf.String(); got != "PROGRESS: Planning\nPROGRESS: Generating\n" {
			t.Errorf("spinner output = %q", got)
		}
	})

	t.Run("full", func(t *testing.T) {
		withPersonality(t, PersonalityFull)
		var buf syncBuffer
		s := NewSpinner(&buf, "Planning")
		s.Start()
		time.Sleep(200 * time.Millisecond)
		s.Stop()
		out := buf.String()
		if !strings.Contains(out, "Planning") {
			t.Errorf("spinner never drew its message: %q", out)
		}
		if !strings.HasSuffix(out, "\r\033[K") {
			t.Errorf("spinner did not clear its line: %q", out)
		}
	})
}
