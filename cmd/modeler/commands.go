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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianModeler/pkg/ux"
)

// --- Global Command Variables ---
var (
	projectRoot      string
	personalityLevel string
	debugLogging     bool
	approvalOverride string
	formatCheck      bool

	rootCmd = &cobra.Command{
		Use:   "modeler",
		Short: "Model DDD building blocks of a C# solution from plain requests",
		Long: `Modeler turns requests such as "add an Order aggregate" into a reviewed
change set for an OpenDDD.NET solution: it plans the files to create, modify
and delete, renders and formats them, shows a diff and applies the approved
changes atomically.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if personalityLevel != "" {
				ux.SetPersonality(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create .modeler/config.yaml in the project",
		Args:  cobra.NoArgs,
		RunE:  runInit, // Defined in cmd_init.go
	}

	runCmd = &cobra.Command{
		Use:   "run [request]",
		Short: "Run one modeling request against the active session",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRequest, // Defined in cmd_run.go
	}

	replCmd = &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive modeling session",
		Args:  cobra.NoArgs,
		RunE:  runRepl, // Defined in cmd_repl.go
	}

	formatCmd = &cobra.Command{
		Use:   "format [file...]",
		Short: "Format C# files with the modeler conventions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runFormat, // Defined in cmd_format.go
	}

	// --- Sessions ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage modeling sessions",
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE:  runListSessions, // Defined in cmd_session.go
	}
	showSessionCmd = &cobra.Command{
		Use:   "show [session_id]",
		Short: "Show a session, the active one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShowSession, // Defined in cmd_session.go
	}
	clearSessionCmd = &cobra.Command{
		Use:   "clear [session_id]",
		Short: "Delete a session and its staged files, the active one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runClearSession, // Defined in cmd_session.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "root", "C", ".", "project root holding src/ and .modeler/")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "", "output style: full, standard, minimal or machine")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "log at debug level")

	runCmd.Flags().StringVar(&approvalOverride, "approval", "", "approval mode for this run: suggest or auto")
	replCmd.Flags().StringVar(&approvalOverride, "approval", "", "approval mode for this session: suggest or auto")
	formatCmd.Flags().BoolVar(&formatCheck, "check", false, "report files that would change without writing them")

	sessionCmd.AddCommand(listSessionsCmd, showSessionCmd, clearSessionCmd)
	rootCmd.AddCommand(initCmd, runCmd, replCmd, formatCmd, sessionCmd)
}
