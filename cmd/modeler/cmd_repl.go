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
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianModeler/pkg/logging"
	"github.com/AleutianAI/AleutianModeler/pkg/ux"
	"github.com/AleutianAI/AleutianModeler/services/llm"
	"github.com/AleutianAI/AleutianModeler/services/modeler/approval"
	"github.com/AleutianAI/AleutianModeler/services/modeler/config"
	"github.com/AleutianAI/AleutianModeler/services/modeler/session"
)

const replPrompt = "modeler> "

const replHelp = `Describe a change, for example "add an Order aggregate with a Cancel command".
Commands:
  /clear    forget the conversation of this session
  /compact  replace the conversation with a summary
  /help     show this help
  /exit     leave`

func runRepl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, projectRoot, appOptions{
		out:      cmd.OutOrStdout(),
		progress: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	watcher := config.NewWatcher(config.Path(a.root), a.reload, config.WithWatcherLogger(a.logger))
	if err := watcher.Start(ctx); err != nil {
		a.logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
	} else {
		defer watcher.Stop()
	}

	return a.repl(ctx, cmd.InOrStdin())
}

// reload applies the settings that may change during a session.
func (a *app) reload(cfg *config.Config) {
	if approvalOverride == "" {
		if mode, err := approval.ParseMode(cfg.ApprovalMode); err == nil {
			a.policy.SetMode(mode)
		}
	}
	if level, err := logging.ParseLevel(cfg.LogLevel); err == nil && !cfg.Debug && !debugLogging {
		a.log.SetLevel(level)
	}
}

// repl reads requests from in until EOF, /exit or cancellation.
func (a *app) repl(ctx context.Context, in io.Reader) error {
	s, created, err := a.sessions.Active(ctx)
	if err != nil {
		return err
	}
	ux.Title(a.out, "Aleutian Modeler")
	if created {
		ux.Info(a.out, "New session "+s.ID)
	} else {
		ux.Info(a.out, fmt.Sprintf("Resuming session %s (%d messages)", s.ID, len(s.History)))
	}
	ux.Info(a.out, "Type /help for commands.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(a.out, replPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := a.replCommand(ctx, s, line)
			if err != nil {
				ux.Error(a.out, err.Error())
			}
			if done {
				return nil
			}
			continue
		}

		res, err := a.runCycle(ctx, s, line)
		if err != nil {
			ux.Error(a.out, err.Error())
			continue
		}
		a.printResult(res)
	}
}

// replCommand runs a slash command. It reports true when the loop should
// end.
func (a *app) replCommand(ctx context.Context, s *session.Session, line string) (bool, error) {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/exit", "/quit":
		return true, nil
	case "/help":
		fmt.Fprintln(a.out, replHelp)
	case "/clear":
		if err := a.sessions.Clear(ctx, s); err != nil {
			return false, err
		}
		ux.Success(a.out, "Conversation cleared.")
	case "/compact":
		summarizer := session.NewLLMSummarizer(a.client, llm.GenerationParams{}, a.projectContext)
		summary, compacted, err := a.sessions.Compact(ctx, s, summarizer)
		if err != nil {
			return false, err
		}
		if !compacted {
			ux.Info(a.out, summary)
			return false, nil
		}
		ux.Panel(a.out, ux.PanelInfo, "Session summary", summary)
	default:
		ux.Warning(a.out, fmt.Sprintf("Unknown command %s. Type /help for commands.", line))
	}
	return false, nil
}
