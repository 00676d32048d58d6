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
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/awnumar/memguard"

	"github.com/AleutianAI/AleutianModeler/pkg/logging"
	"github.com/AleutianAI/AleutianModeler/pkg/ux"
	"github.com/AleutianAI/AleutianModeler/services/llm"
	"github.com/AleutianAI/AleutianModeler/services/modeler/approval"
	"github.com/AleutianAI/AleutianModeler/services/modeler/config"
	"github.com/AleutianAI/AleutianModeler/services/modeler/format"
	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
	"github.com/AleutianAI/AleutianModeler/services/modeler/mutate"
	"github.com/AleutianAI/AleutianModeler/services/modeler/planner"
	"github.com/AleutianAI/AleutianModeler/services/modeler/preview"
	"github.com/AleutianAI/AleutianModeler/services/modeler/project"
	"github.com/AleutianAI/AleutianModeler/services/modeler/redact"
	"github.com/AleutianAI/AleutianModeler/services/modeler/render"
	"github.com/AleutianAI/AleutianModeler/services/modeler/session"
	"github.com/AleutianAI/AleutianModeler/services/modeler/staging"
	modelerbadger "github.com/AleutianAI/AleutianModeler/services/modeler/storage/badger"
	"github.com/AleutianAI/AleutianModeler/services/modeler/syntax"
	"github.com/AleutianAI/AleutianModeler/services/modeler/telemetry"
	"github.com/AleutianAI/AleutianModeler/services/modeler/workflow"
)

// appOptions replaces collaborators that are otherwise built from the
// config. Tests use them to avoid the network and the terminal.
type appOptions struct {
	client        llm.LLMClient
	approver      approval.Approver
	store         session.Store
	out           io.Writer
	progress      io.Writer
	now           func() time.Time
	skipTelemetry bool
}

// app holds the collaborators shared by the commands of one process.
type app struct {
	root     string
	cfg      *config.Config
	log      *logging.Logger
	logger   *slog.Logger
	db       *modelerbadger.DB
	sessions *session.Manager
	client   llm.LLMClient

	index     *syntax.Index
	formatter *format.Formatter
	scanner   *project.FSScanner
	planner   *planner.Planner
	generator *mutate.Generator
	policy    *approval.Policy

	out      io.Writer
	progress io.Writer
	now      func() time.Time
	shutdown telemetry.ShutdownFunc
}

// newApp loads the project config and wires the modeling pipeline.
func newApp(ctx context.Context, root string, opts appOptions) (*app, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	cfg, err := config.Load(config.Path(abs))
	if err != nil {
		return nil, err
	}

	a := &app{
		root:     abs,
		cfg:      cfg,
		out:      opts.out,
		progress: opts.progress,
		now:      opts.now,
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.progress == nil {
		a.progress = os.Stderr
	}
	if a.now == nil {
		a.now = time.Now
	}

	if err := a.initLogging(); err != nil {
		return nil, err
	}

	a.shutdown = func(context.Context) error { return nil }
	if !opts.skipTelemetry {
		shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.WithStderr(a.progress))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.shutdown = shutdown
	}

	store := opts.store
	if store == nil {
		dbCfg := modelerbadger.DefaultConfig(filepath.Join(a.sessionsRoot(), "db"))
		dbCfg.Logger = a.logger.With(slog.String("component", "badger"))
		a.db, err = modelerbadger.Open(dbCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		store = session.NewBadgerStore(a.db, a.logger)
	}
	a.sessions = session.NewManager(store, a.sessionsRoot(),
		session.WithClock(a.now),
		session.WithManagerLogger(a.logger))

	a.client = opts.client
	if a.client == nil {
		a.client, err = newLLMClient(cfg.LLM, cfg.APIKey())
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if err := a.initPipeline(opts.approver); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) sessionsRoot() string {
	return filepath.Join(a.root, config.Dir, "sessions")
}

func (a *app) initLogging() error {
	level, err := logging.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	debug := a.cfg.Debug || debugLogging
	if debug {
		level = logging.LevelDebug
	}
	logDir := a.cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(a.root, config.Dir, "logs")
	}
	a.log = logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: "modeler",
		Quiet:   !debug,
	})
	a.logger = a.log.Slog()
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) initPipeline(approver approval.Approver) error {
	a.index = syntax.NewIndex(syntax.WithLogger(a.logger))
	a.formatter = format.New(a.index, format.WithLogger(a.logger))

	templatesDir := a.cfg.TemplatesDir
	if templatesDir == "" {
		templatesDir = filepath.Join(config.Dir, "templates")
	}
	if !filepath.IsAbs(templatesDir) {
		templatesDir = filepath.Join(a.root, templatesDir)
	}
	renderer, err := render.NewTemplateRenderer(
		render.WithOverrideDir(templatesDir),
		render.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	engine := mutate.NewEngine(a.index, a.formatter, renderer, mutate.WithLogger(a.logger))
	a.generator = mutate.NewGenerator(engine,
		mutate.WithParallelism(a.cfg.Generation.Parallelism),
		mutate.WithGeneratorLogger(a.logger))
	a.planner = planner.New(planner.WithTemplates(renderer), planner.WithLogger(a.logger))
	a.scanner = project.NewFSScanner(a.root,
		project.WithIndex(a.index),
		project.WithParallelism(a.cfg.Generation.Parallelism),
		project.WithLogger(a.logger))

	modeName := a.cfg.ApprovalMode
	if approvalOverride != "" {
		modeName = approvalOverride
	}
	mode, err := approval.ParseMode(modeName)
	if err != nil {
		return err
	}
	if approver == nil {
		approver = approval.Detect()
	}
	a.policy = approval.NewPolicy(mode, approver, approval.WithLogger(a.logger))
	return nil
}

// newLLMClient builds the configured backend behind the retry and rate
// limit policy, and the prompt redactor when enabled.
func newLLMClient(cfg config.LLMConfig, apiKey *memguard.Enclave) (llm.LLMClient, error) {
	var inner llm.LLMClient
	var err error
	switch cfg.Provider {
	case llm.ProviderOpenAI:
		inner, err = llm.NewOpenAIClient(llm.OpenAIConfig{
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  apiKey,
		})
		if errors.Is(err, llm.ErrMissingAPIKey) {
			err = fmt.Errorf("%w: set %s or llm.openai.api_key", err, config.APIKeyEnv)
		}
	case llm.ProviderOllama:
		inner, err = llm.NewOllamaClient(llm.OllamaConfig{
			Model:     cfg.Ollama.Model,
			ServerURL: cfg.Ollama.ServerURL,
		})
	default:
		err = fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	var client llm.LLMClient = llm.NewPolicyClient(inner,
		llm.WithProvider(cfg.Provider),
		llm.WithCallTimeout(cfg.Timeout),
		llm.WithMaxRetries(cfg.MaxRetries),
		llm.WithRateLimit(cfg.RequestsPerSecond))
	if cfg.RedactPrompts {
		guard, err := redact.New()
		if err != nil {
			return nil, err
		}
		client = redact.NewClient(client, guard)
	}
	return client, nil
}

// errOffline is returned by offlineClient.
var errOffline = errors.New("this command does not use the language model")

// offlineClient stands in for the backend in commands that never call it.
type offlineClient struct{}

func (offlineClient) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return "", errOffline
}

// Close flushes telemetry and closes the store and the log file.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && a.logger != nil {
			a.logger.Warn("closing session store failed", slog.String("error", err.Error()))
		}
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}

// projectContext describes the project for session summaries.
func (a *app) projectContext() string {
	md, err := a.scanner.Metadata(context.Background())
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s (namespace %s, persistence %s, database %s)",
		md.ProjectName, md.RootNamespace, md.PersistenceProvider, md.DatabaseProvider)
}

// engineFor builds a workflow engine whose staging area and backups live
// in the directory of session s.
func (a *app) engineFor(s *session.Session, hook workflow.PhaseHook) (*workflow.Engine, error) {
	area, err := staging.NewArea(a.sessions.GeneratedDir(s.ID), a.logger)
	if err != nil {
		return nil, err
	}
	deps := workflow.Dependencies{
		Source:    intent.NewLLMSource(a.client, intent.WithSourceLogger(a.logger)),
		Scanner:   a.scanner,
		Planner:   a.planner,
		Generator: a.generator,
		Stager:    area,
		Previewer: preview.NewBuilder(a.root, preview.WithLogger(a.logger)),
		Approver:  a.policy,
		Committer: staging.NewCommitter(a.root,
			filepath.Join(a.sessions.Dir(s.ID), "backup"),
			staging.WithCommitterLogger(a.logger)),
		Output: a.out,
	}
	return workflow.NewEngine(deps,
		workflow.WithMaxRevisions(a.cfg.MaxRevisions),
		workflow.WithPhaseHook(hook),
		workflow.WithLogger(a.logger))
}

var phaseMessages = map[workflow.State]string{
	workflow.StateDistillIntent:          "Understanding the request",
	workflow.StateExtractMetadata:        "Reading the solution",
	workflow.StateExtractBuildingBlocks:  "Indexing building blocks",
	workflow.StateExtractRelevantSources: "Collecting relevant sources",
	workflow.StatePlan:                   "Planning changes",
	workflow.StateGenerate:               "Generating files",
	workflow.StateReviseIntent:           "Revising the plan",
	workflow.StateApplyChanges:           "Applying changes",
}

// runCycle runs input through the workflow and records the outcome in s.
func (a *app) runCycle(ctx context.Context, s *session.Session, input string) (*workflow.Result, error) {
	spinner := ux.NewSpinner(a.progress, "Starting")
	defer spinner.Stop()
	hook := func(_ *workflow.Cycle, state workflow.State) {
		msg, ok := phaseMessages[state]
		if !ok {
			spinner.Stop()
			return
		}
		spinner.Update(msg)
		spinner.Start()
	}

	engine, err := a.engineFor(s, hook)
	if err != nil {
		return nil, err
	}
	c := workflow.NewCycle(s.ID, input, s.Summary, s.History)
	res, err := engine.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	spinner.Stop()

	s.RecordCycle(c.Summarize(a.now()))
	if err := a.sessions.Save(ctx, s); err != nil {
		return res, fmt.Errorf("saving session: %w", err)
	}
	return res, nil
}

// printResult writes the final output of a cycle.
func (a *app) printResult(res *workflow.Result) {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, res.FinalOutput)
}
