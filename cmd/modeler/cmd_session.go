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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianModeler/pkg/ux"
	"github.com/AleutianAI/AleutianModeler/services/modeler/session"
)

func sessionApp(cmd *cobra.Command) (*app, error) {
	return newApp(cmd.Context(), projectRoot, appOptions{
		out:           cmd.OutOrStdout(),
		progress:      cmd.ErrOrStderr(),
		client:        offlineClient{},
		skipTelemetry: true,
	})
}

func runListSessions(cmd *cobra.Command, args []string) error {
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.listSessions(cmd.Context())
}

func runShowSession(cmd *cobra.Command, args []string) error {
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.showSession(cmd.Context(), firstArg(args))
}

func runClearSession(cmd *cobra.Command, args []string) error {
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.clearSession(cmd.Context(), firstArg(args))
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// resolveSession returns session id, or the active one when id is empty.
func (a *app) resolveSession(ctx context.Context, id string) (*session.Session, error) {
	store := a.sessions.Store()
	if id == "" {
		active, err := store.ActiveID(ctx)
		if err != nil {
			return nil, err
		}
		id = active
	}
	return store.Load(ctx, id)
}

func (a *app) listSessions(ctx context.Context) error {
	sessions, err := a.sessions.Store().List(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		ux.Info(a.out, "No sessions yet.")
		return nil
	}
	active, err := a.sessions.Store().ActiveID(ctx)
	if err != nil && !errors.Is(err, session.ErrNoActiveSession) {
		return err
	}
	for _, s := range sessions {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %s  %3d messages  %s\n",
			marker, s.ID, s.UpdatedAt.Local().Format(time.DateTime), len(s.History), lastOutcome(s))
	}
	return nil
}

func lastOutcome(s *session.Session) string {
	if s.LastCycle == nil {
		return "-"
	}
	return s.LastCycle.Outcome
}

func (a *app) showSession(ctx context.Context, id string) error {
	s, err := a.resolveSession(ctx, id)
	if err != nil {
		return err
	}
	writeSession(a.out, s)
	return nil
}

func writeSession(out io.Writer, s *session.Session) {
	ux.Title(out, "Session "+s.ID)
	fmt.Fprintf(out, "Created: %s\nUpdated: %s\n", s.CreatedAt.Local().Format(time.DateTime), s.UpdatedAt.Local().Format(time.DateTime))
	if s.Summary != "" {
		ux.Panel(out, ux.PanelInfo, "Summary", s.Summary)
	}
	for _, m := range s.History {
		fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.Role, oneLine(m.Content))
	}
	if c := s.LastCycle; c != nil {
		fmt.Fprintf(out, "Last cycle: %s (%s)\n", c.Outcome, c.CycleID)
		for _, f := range c.Files {
			ux.FileStatus(out, f, ux.IconBullet, "")
		}
		for _, w := range c.Warnings {
			ux.Warning(out, w)
		}
	}
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 120 {
		return string(r[:117]) + "..."
	}
	return s
}

func (a *app) clearSession(ctx context.Context, id string) error {
	s, err := a.resolveSession(ctx, id)
	if err != nil {
		return err
	}
	if err := a.sessions.Delete(ctx, s.ID); err != nil {
		return err
	}
	ux.Success(a.out, "Deleted session "+s.ID)
	return nil
}
