// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render turns template ids plus context maps into C# source.
//
// Templates ship embedded in the binary. A project may override or add
// templates by placing <id>.cs.tmpl files under an override directory.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates
var embedded embed.FS

// templateExt is the file suffix of every template.
const templateExt = ".cs.tmpl"

// Renderer renders a template id with a context.
type Renderer interface {
	// Render returns the rendered source. Missing ids fail with
	// ErrTemplateNotFound, execution failures with ErrRender.
	Render(ctx context.Context, templateID string, data map[string]any) (string, error)
}

// Option configures a TemplateRenderer.
type Option func(*options)

type options struct {
	overrideDir string
	logger      *slog.Logger
}

// WithOverrideDir loads additional templates from dir. Ids found there
// replace the embedded ones. A missing directory is ignored.
func WithOverrideDir(dir string) Option {
	return func(o *options) { o.overrideDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// TemplateRenderer is the text/template implementation of Renderer.
//
// # Description
//
// Context maps are normalized through JSON before execution, so templates
// see plain maps, slices, strings, numbers and booleans whatever Go types
// the caller passed. Templates run with missingkey=error: a required key
// absent from the context fails the render. Optional keys are read with
// the get and list helpers.
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type TemplateRenderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer parses the embedded templates and any overrides.
func NewTemplateRenderer(opts ...Option) (*TemplateRenderer, error) {
	o := &options{logger: slog.Default().With(slog.String("component", "render"))}
	for _, opt := range opts {
		opt(o)
	}

	r := &TemplateRenderer{
		templates: make(map[string]*template.Template),
		logger:    o.logger,
	}

	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("opening embedded templates: %w", err)
	}
	if err := r.load(sub, "embedded"); err != nil {
		return nil, err
	}

	if o.overrideDir != "" {
		if info, err := os.Stat(o.overrideDir); err == nil && info.IsDir() {
			if err := r.load(os.DirFS(o.overrideDir), "override"); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

func (r *TemplateRenderer) load(fsys fs.FS, source string) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, templateExt) {
			return nil
		}

		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", path, err)
		}

		id := strings.TrimSuffix(path, templateExt)
		tmpl, err := template.New(id).
			Option("missingkey=error").
			Funcs(funcMap).
			Parse(string(raw))
		if err != nil {
			return fmt.Errorf("%w: parsing %s: %v", ErrRender, path, err)
		}

		if _, exists := r.templates[id]; exists {
			r.logger.Info("template overridden", slog.String("id", id), slog.String("source", source))
		}
		r.templates[id] = tmpl
		return nil
	})
}

// Has reports whether templateID is known.
func (r *TemplateRenderer) Has(templateID string) bool {
	_, ok := r.templates[templateID]
	return ok
}

// IDs returns the known template ids, sorted.
func (r *TemplateRenderer) IDs() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render executes templateID with data.
//
// # Outputs
//
//   - string: Rendered text, surrounding whitespace trimmed, ending in "\n".
//   - error: ErrTemplateNotFound, ErrRender, or a context error.
func (r *TemplateRenderer) Render(ctx context.Context, templateID string, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmpl, ok := r.templates[templateID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}

	plain, err := normalize(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRender, templateID, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRender, templateID, err)
	}

	return strings.TrimSpace(buf.String()) + "\n", nil
}

// normalize converts data into JSON-shaped values.
func normalize(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding context: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding context: %w", err)
	}
	return out, nil
}
