// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the modeler CLI.
//
// Every printer takes an io.Writer and honors the current personality
// level: machine output is plain and line-oriented, the other levels use
// lipgloss styles.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#7A8C93")
)

// Styles holds the shared lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the styled icon.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// PanelKind selects the border style of a panel.
type PanelKind int

const (
	PanelInfo PanelKind = iota
	PanelWarning
	PanelError
)

// PanelWidth is the outer width of panels.
const PanelWidth = 100

// Title prints a styled title. Machine output omits it.
func Title(w io.Writer, text string) {
	if GetPersonality() == PersonalityMachine {
		return
	}
	fmt.Fprintln(w, Styles.Title.Render(text))
}

// Success prints a success line.
func Success(w io.Writer, text string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(w, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(w, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(w, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning line.
func Warning(w io.Writer, text string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(w, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(w, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(w, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error line.
func Error(w io.Writer, text string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(w, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(w, "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(w, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational line.
func Info(w io.Writer, text string) {
	if GetPersonality() == PersonalityMachine {
		fmt.Fprintln(w, text)
		return
	}
	fmt.Fprintf(w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Panel prints body inside a bordered box with a title line. Machine and
// minimal output print the title and the body without a border.
func Panel(w io.Writer, kind PanelKind, title, body string) {
	if GetPersonality() != PersonalityFull {
		fmt.Fprintf(w, "== %s ==\n", title)
		if body != "" {
			fmt.Fprintln(w, strings.TrimRight(body, "\n"))
		}
		return
	}

	style, titleStyle := Styles.Box, Styles.Title
	switch kind {
	case PanelWarning:
		style, titleStyle = Styles.WarningBox, Styles.Warning.Bold(true)
	case PanelError:
		style, titleStyle = Styles.ErrorBox, Styles.Error.Bold(true)
	}
	content := titleStyle.Render(title)
	if body != "" {
		content += "\n" + strings.TrimRight(body, "\n")
	}
	fmt.Fprintln(w, style.Width(PanelWidth).Render(content))
}

// FileStatus prints a path with a status icon and an optional reason.
func FileStatus(w io.Writer, path string, status Icon, reason string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(w, "%s\t%s\t%s\n", status, path, reason)
	case PersonalityMinimal:
		fmt.Fprintf(w, "%s %s\n", status.Render(), path)
	default:
		if reason != "" {
			fmt.Fprintf(w, "%s %s %s\n", status.Render(), path, Styles.Muted.Render("("+reason+")"))
		} else {
			fmt.Fprintf(w, "%s %s\n", status.Render(), path)
		}
	}
}

// DiffStat formats added and removed line counts as "+a -r".
func DiffStat(added, removed int) string {
	plain := fmt.Sprintf("+%d -%d", added, removed)
	if GetPersonality() == PersonalityMachine {
		return plain
	}
	return Styles.Success.Render(fmt.Sprintf("+%d", added)) + " " + Styles.Error.Render(fmt.Sprintf("-%d", removed))
}

// ColorizeDiff styles the lines of a unified diff. Machine output returns
// it unchanged.
func ColorizeDiff(diff string) string {
	if GetPersonality() == PersonalityMachine {
		return diff
	}
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = Styles.Bold.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = Styles.Highlight.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = Styles.Success.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = Styles.Error.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
