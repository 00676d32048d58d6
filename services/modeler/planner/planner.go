// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner turns modeling intents into an ordered list of plan
// steps against a known project layout.
//
// Planning never fails. Anything that cannot be planned (an unknown
// intent, a file that already exists, a target that does not) becomes a
// warning and the remaining intents are still planned.
package planner

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
	"github.com/AleutianAI/AleutianModeler/services/modeler/plan"
	"github.com/AleutianAI/AleutianModeler/services/modeler/project"
)

// Template identifiers used by the planner.
const (
	TemplateAggregateRoot       = "aggregate_root"
	TemplateValueObject         = "value_object"
	TemplateRepositoryInterface = "repository/repository_interface"
	TemplateEfCoreRepository    = "repository/efcore_repository_implementation"
	TemplatePostgresOpenDDD     = "repository/postgres_openddd_repository_implementation"
)

var builtinTemplates = map[string]bool{
	TemplateAggregateRoot:       true,
	TemplateValueObject:         true,
	TemplateRepositoryInterface: true,
	TemplateEfCoreRepository:    true,
	TemplatePostgresOpenDDD:     true,
}

// Result is the outcome of one planning pass.
type Result struct {
	Steps    plan.Steps
	Warnings []string
}

// TemplateSet reports which templates can be rendered.
type TemplateSet interface {
	Has(templateID string) bool
}

// Option configures a Planner.
type Option func(*Planner)

// WithTemplates makes the planner warn instead of emitting CreateFile
// steps whose template is not available.
func WithTemplates(ts TemplateSet) Option {
	return func(p *Planner) {
		p.templates = ts
	}
}

// WithLogger sets the planner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// handler plans one intent into the pass state.
type handler func(p *pass, in intent.Intent)

// Planner maps intents to plan steps.
//
// # Thread Safety
//
// Planner is immutable after construction and safe for concurrent use.
type Planner struct {
	handlers  map[intent.Kind]handler
	templates TemplateSet
	logger    *slog.Logger
}

// New creates a Planner with the built-in intent handlers.
func New(opts ...Option) *Planner {
	p := &Planner{
		logger: slog.Default().With(slog.String("component", "planner")),
		handlers: map[intent.Kind]handler{
			intent.AddAggregate:           planAggregate,
			intent.RemoveAggregate:        planRemoveAggregate,
			intent.AddAggregateProperty:   planAddAggregateProperty,
			intent.AddAggregateMethod:     planAddAggregateMethod,
			intent.AddValueObject:         planValueObject,
			intent.RemoveValueObject:      planRemoveValueObject,
			intent.AddValueObjectProperty: planAddValueObjectProperty,
			intent.AddRepository:          planRepository,
			intent.RemoveRepository:       planRemoveRepository,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan builds the steps for intents.
//
// # Description
//
// Intents first pass through intent.EnforceConventions and
// intent.Integrate. Each intent is then planned in order. Path guards
// apply to every step: a CreateFile whose path is known (on disk or
// created earlier in the same plan) is replaced by a warning; a ModifyFile
// or DeleteFile whose path is unknown is replaced by a warning.
//
// # Inputs
//
//   - intents: Decoded intents, in request order. Not modified.
//   - md: Project metadata. Layer paths should be project-relative.
//   - known: Existing file paths, project-relative or absolute.
//
// # Outputs
//
//   - Result: Steps in plan order and warnings in the order raised.
func (p *Planner) Plan(intents []intent.Intent, md project.Metadata, known map[string]struct{}) Result {
	prepared := intent.Integrate(intent.EnforceConventions(intents))

	ps := &pass{
		planner:  p,
		md:       md,
		known:    known,
		created:  make(map[string]bool),
		deleted:  make(map[string]bool),
		touched:  make(map[string]bool),
		logger:   p.logger,
		persist:  md.PersistenceProvider,
		database: md.DatabaseProvider,
	}
	if ps.persist == "" {
		ps.persist = project.DefaultPersistence
	}
	if ps.database == "" {
		ps.database = project.DefaultDatabase
	}

	for _, in := range prepared {
		kind := in.Kind.Normalize()
		h, ok := p.handlers[kind]
		if !ok {
			ps.warn(unsupportedWarning(in))
			continue
		}
		h(ps, in)
	}
	ps.planDirectoryDeletes()

	for _, s := range ps.result.Steps {
		plannedStepsTotal.WithLabelValues(string(s.Type())).Inc()
	}
	planWarningsTotal.Add(float64(len(ps.result.Warnings)))

	p.logger.Info("plan built",
		slog.Int("intents", len(prepared)),
		slog.Int("steps", len(ps.result.Steps)),
		slog.Int("warnings", len(ps.result.Warnings)))
	return ps.result
}

func unsupportedWarning(in intent.Intent) string {
	kind := in.Kind.Normalize()
	if kind == "" {
		kind = "unknown"
	}
	if in.Target != "" {
		return fmt.Sprintf("⚠️ Intent `%s` for `%s` is not supported. Skipping.", kind, in.Target)
	}
	return fmt.Sprintf("⚠️ Intent `%s` is not supported. Skipping.", kind)
}

// pass is the mutable state of one Plan call.
type pass struct {
	planner  *Planner
	md       project.Metadata
	known    map[string]struct{}
	persist  string
	database string
	logger   *slog.Logger

	// created holds paths created earlier in this plan.
	created map[string]bool

	// deleted holds paths deleted earlier in this plan.
	deleted map[string]bool

	// touched holds paths that receive content in this plan.
	touched map[string]bool

	// dirOrders are directories to remove once every intent is planned.
	dirOrders []dirOrder

	result Result
}

type dirOrder struct {
	dir         string
	description string
}

func (ps *pass) warn(msg string) {
	ps.logger.Info("planning warning", slog.String("warning", msg))
	ps.result.Warnings = append(ps.result.Warnings, msg)
}

// exists reports whether rel is on disk or created earlier in this plan,
// and not deleted earlier in this plan.
func (ps *pass) exists(rel string) bool {
	if ps.deleted[rel] {
		return false
	}
	if ps.created[rel] {
		return true
	}
	return ps.onDisk(rel)
}

func (ps *pass) onDisk(rel string) bool {
	if _, ok := ps.known[rel]; ok {
		return true
	}
	if ps.md.ProjectRoot == "" {
		return false
	}
	abs := filepath.Join(ps.md.ProjectRoot, filepath.FromSlash(rel))
	if _, ok := ps.known[abs]; ok {
		return true
	}
	_, ok := ps.known[filepath.ToSlash(abs)]
	return ok
}

// templateMissing checks the configured template set, or the built-in
// templates when none is configured.
func (ps *pass) templateMissing(id string) bool {
	if ps.planner.templates == nil {
		return !builtinTemplates[id]
	}
	return !ps.planner.templates.Has(id)
}

// create appends a CreateFile unless its path already exists.
func (ps *pass) create(step plan.CreateFile, existsMsg string) bool {
	rel := step.Path()
	if ps.exists(rel) {
		ps.warn(existsMsg)
		return false
	}
	if ps.templateMissing(step.Template) {
		ps.warn(fmt.Sprintf("⚠️ No template `%s` is available. Skipping `%s`.", step.Template, rel))
		return false
	}
	ps.created[rel] = true
	ps.touched[rel] = true
	ps.result.Steps = append(ps.result.Steps, step)
	return true
}

// modify appends a ModifyFile unless its path is unknown.
func (ps *pass) modify(step plan.ModifyFile, missingMsg string) bool {
	if !ps.exists(step.Path()) {
		ps.warn(missingMsg)
		return false
	}
	ps.touched[step.Path()] = true
	ps.result.Steps = append(ps.result.Steps, step)
	return true
}

// remove appends a DeleteFile unless its path is unknown.
func (ps *pass) remove(step plan.DeleteFile, missingMsg string) bool {
	rel := step.Path()
	if !ps.exists(rel) {
		ps.warn(missingMsg)
		return false
	}
	ps.deleted[rel] = true
	delete(ps.created, rel)
	ps.result.Steps = append(ps.result.Steps, step)
	return true
}

// planDirectoryDeletes removes ordered directories that keep no file.
func (ps *pass) planDirectoryDeletes() {
	for _, order := range ps.dirOrders {
		if ps.dirKeepsFiles(order.dir) {
			ps.logger.Debug("directory kept", slog.String("dir", order.dir))
			continue
		}
		ps.result.Steps = append(ps.result.Steps, plan.DeleteDirectory{
			Header: plan.Header{FilePath: order.dir, Summary: order.description},
		})
	}
}

func (ps *pass) dirKeepsFiles(dir string) bool {
	prefix := dir + "/"
	absPrefix := filepath.ToSlash(filepath.Join(ps.md.ProjectRoot, filepath.FromSlash(dir))) + "/"
	for p := range ps.known {
		slashed := filepath.ToSlash(p)
		rel := slashed
		if ps.md.ProjectRoot != "" && strings.HasPrefix(slashed, absPrefix) {
			rel = prefix + strings.TrimPrefix(slashed, absPrefix)
		}
		if strings.HasPrefix(rel, prefix) && !ps.deleted[rel] {
			return true
		}
	}
	for p := range ps.touched {
		if strings.HasPrefix(p, prefix) && !ps.deleted[p] {
			return true
		}
	}
	return false
}

// modelPath is {domain}/Model/{name}/{file}.cs.
func (ps *pass) modelPath(name, file string) string {
	return path.Join(ps.md.DomainPath, "Model", name, file+".cs")
}

func (ps *pass) modelNamespace(name string) string {
	return ps.md.RootNamespace + ".Domain.Model." + name
}
